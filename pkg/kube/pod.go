// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Pod is a pod within a namespace. The container list and the hostname of
// the node the pod is scheduled on come from the same kubectl call, so
// both are populated by one query and share one cache invalidation.
type Pod struct {
	base
	hostname string
}

func newPod(name string, query Query, parent Object) *Pod {
	return &Pod{base: base{name: name, kind: KindPod, query: query, parent: parent}}
}

func (p *Pod) PathFragment() string { return "pod." + p.name }

// gather issues the single combined query populating both the child
// containers and the hostname.
func (p *Pod) gather(ctx context.Context) error {
	u, err := p.query.JSON(ctx, false, "get", "pods", p.name)
	if err != nil {
		return err
	}
	hostname, found, err := unstructured.NestedString(u.Object, "spec", "nodeName")
	if err != nil || !found {
		return fmt.Errorf("could not fetch the hostname of pod %s", p.name)
	}
	statuses, _, err := unstructured.NestedSlice(u.Object, "status", "containerStatuses")
	if err != nil {
		return fmt.Errorf("malformed container statuses for pod %s: %w", p.name, err)
	}

	var children []Object
	for _, s := range statuses {
		status, ok := s.(map[string]interface{})
		if !ok {
			return fmt.Errorf("malformed container status for pod %s", p.name)
		}
		name, _ := status["name"].(string)
		id, _ := status["containerID"].(string)
		if name == "" {
			return fmt.Errorf("container status without a name in pod %s", p.name)
		}
		id = strings.TrimPrefix(id, "docker://")
		children = append(children, newContainer(name, p.query, p, id, hostname))
	}
	p.hostname = hostname
	p.store(children)
	return nil
}

func (p *Pod) Children(ctx context.Context) ([]Object, error) {
	if !p.fetched {
		if err := p.gather(ctx); err != nil {
			return nil, err
		}
	}
	return p.children, nil
}

// Hostname is the node the pod is scheduled on, fetched together with the
// container list.
func (p *Pod) Hostname(ctx context.Context) (string, error) {
	if !p.fetched {
		if err := p.gather(ctx); err != nil {
			return "", err
		}
	}
	return p.hostname, nil
}

func (p *Pod) Refresh() {
	p.base.Refresh()
	p.hostname = ""
}

func (p *Pod) Delete(ctx context.Context) error {
	return p.deleteAs(ctx, p)
}
