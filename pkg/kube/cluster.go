// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"fmt"
)

// Cluster is the root of the tree. Its query binding carries the
// administrator namespace, and each namespace child derives its own
// namespace-scoped binding from it.
type Cluster struct {
	base
}

// NewCluster builds a tree root for the named cluster. The query must
// already be bound to the cluster's administrator credential profile.
func NewCluster(name string, query Query) *Cluster {
	return &Cluster{base: base{name: name, kind: KindCluster, query: query}}
}

func (c *Cluster) PathFragment() string { return "/" }
func (c *Cluster) Deletable() bool      { return false }

func (c *Cluster) Children(ctx context.Context) ([]Object, error) {
	if c.fetched {
		return c.children, nil
	}
	u, err := c.query.JSON(ctx, true, "get", "namespaces")
	if err != nil {
		return nil, err
	}
	list, err := u.ToList()
	if err != nil {
		return nil, fmt.Errorf("unexpected namespace listing: %w", err)
	}
	var children []Object
	for i := range list.Items {
		name := list.Items[i].GetName()
		children = append(children, newNamespace(name, c.query.WithNamespace(name), c))
	}
	c.store(children)
	return c.children, nil
}

func (c *Cluster) Delete(ctx context.Context) error {
	return c.deleteAs(ctx, c)
}

// Eventlog reads events across all namespaces, which requires the
// administrator profile.
func (c *Cluster) Eventlog(ctx context.Context, sortKey string) error {
	if err := c.query.Stream(ctx, true, "get", "events", "--sort-by="+sortKey, "-A"); err != nil {
		return fmt.Errorf("could not read the event log: %w", err)
	}
	return nil
}
