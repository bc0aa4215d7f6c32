// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Query is the kubectl surface the tree depends on. A Query is bound to one
// cluster and at most one namespace; nodes derive narrower bindings with
// WithNamespace as they materialize children.
type Query interface {
	// ClusterName returns the cluster this query is bound to.
	ClusterName() string
	// NamespaceName returns the bound namespace, or "" for cluster scope.
	NamespaceName() string
	// WithNamespace derives a query bound to the given namespace.
	WithNamespace(namespace string) Query

	// JSON runs a kubectl verb with JSON output and decodes the result.
	// Privileged queries run under the administrator credential profile.
	JSON(ctx context.Context, privileged bool, args ...string) (*unstructured.Unstructured, error)
	// Stream runs a kubectl verb, streaming its output to the terminal.
	Stream(ctx context.Context, privileged bool, args ...string) error
	// Capture runs a kubectl verb and returns its full output.
	Capture(ctx context.Context, privileged bool, args ...string) (stdout, stderr []byte, err error)

	// HostExec returns an executor bound to a named cluster host.
	HostExec(host string) Exec
}

// Exec runs argument vectors on a host (the node a pod is scheduled on).
type Exec interface {
	// Stream runs argv and streams its output to the terminal.
	Stream(ctx context.Context, argv ...string) error
	// Capture runs argv and returns its full output.
	Capture(ctx context.Context, argv ...string) (stdout, stderr []byte, err error)
}
