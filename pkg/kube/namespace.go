// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"fmt"
)

// Namespace holds the pods and services of one namespace. Its query is
// bound to the namespace, and every descendant inherits that binding.
type Namespace struct {
	base
}

func newNamespace(name string, query Query, parent Object) *Namespace {
	return &Namespace{base: base{name: name, kind: KindNamespace, query: query, parent: parent}}
}

func (n *Namespace) Children(ctx context.Context) ([]Object, error) {
	if n.fetched {
		return n.children, nil
	}
	pods, err := n.query.JSON(ctx, false, "get", "pods")
	if err != nil {
		return nil, err
	}
	podList, err := pods.ToList()
	if err != nil {
		return nil, fmt.Errorf("unexpected pod listing: %w", err)
	}
	services, err := n.query.JSON(ctx, false, "get", "services")
	if err != nil {
		return nil, err
	}
	serviceList, err := services.ToList()
	if err != nil {
		return nil, fmt.Errorf("unexpected service listing: %w", err)
	}

	var children []Object
	for i := range podList.Items {
		children = append(children, newPod(podList.Items[i].GetName(), n.query, n))
	}
	for i := range serviceList.Items {
		children = append(children, newService(serviceList.Items[i].GetName(), n.query, n))
	}
	n.store(children)
	return n.children, nil
}

func (n *Namespace) Delete(ctx context.Context) error {
	return n.deleteAs(ctx, n)
}
