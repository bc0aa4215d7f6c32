// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package kube implements the virtual filesystem over a Kubernetes cluster:
// a lazily materialized tree of cluster → namespace → pod/service →
// container nodes, path resolution with glob support, and the Navigator
// that tracks the current position.
//
// Nodes talk to the cluster only through the Query and Exec interfaces, so
// the whole engine can be exercised against fakes.
package kube

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Kind tags one level of the resource hierarchy.
type Kind string

const (
	KindNone      Kind = ""
	KindCluster   Kind = "cluster"
	KindNamespace Kind = "namespace"
	KindPod       Kind = "pod"
	KindService   Kind = "service"
	KindContainer Kind = "container"
)

// Object is one entity in the hierarchy. Implementations embed base, which
// supplies the shared state and the ContextError defaults for actions that
// do not apply to their kind.
type Object interface {
	Name() string
	Kind() Kind
	Parent() Object
	// PathFragment is the segment this object contributes to a path,
	// stable for the object's lifetime.
	PathFragment() string
	// Children returns the child objects, querying the cluster on first
	// access and serving the cached result afterwards.
	Children(ctx context.Context) ([]Object, error)
	// Refresh drops any cached query responses so the next access
	// re-queries the cluster.
	Refresh()
	// Deletable reports whether objects of this kind may be deleted.
	Deletable() bool

	// Actions. Kinds that do not support an action return a ContextError.
	Ps(ctx context.Context) error
	Tail(ctx context.Context, follow bool) error
	Nsenter(ctx context.Context, args []string) error
	Exec(ctx context.Context, args []string) error
	RootExec(ctx context.Context, args []string) error
	Eventlog(ctx context.Context, sortKey string) error
	Delete(ctx context.Context) error
	Ports(ctx context.Context) (*ServiceInfo, error)
}

// base carries the state shared by every node kind. The parent reference
// points upward only; ownership runs parent → children.
type base struct {
	name   string
	kind   Kind
	parent Object
	query  Query

	// Tri-state child cache: fetched distinguishes "queried, empty" from
	// "never queried".
	fetched  bool
	children []Object
}

func (b *base) Name() string         { return b.name }
func (b *base) Kind() Kind           { return b.kind }
func (b *base) Parent() Object       { return b.parent }
func (b *base) PathFragment() string { return b.name }
func (b *base) Deletable() bool      { return true }

func (b *base) Refresh() {
	b.fetched = false
	b.children = nil
}

func (b *base) store(children []Object) {
	b.children = children
	b.fetched = true
}

func (b *base) Ps(ctx context.Context) error {
	return &ContextError{Op: "ps", Kind: b.kind}
}

func (b *base) Tail(ctx context.Context, follow bool) error {
	return &ContextError{Op: "tail", Kind: b.kind}
}

func (b *base) Nsenter(ctx context.Context, args []string) error {
	return &ContextError{Op: "nsenter", Kind: b.kind}
}

func (b *base) Exec(ctx context.Context, args []string) error {
	return &ContextError{Op: "exec", Kind: b.kind}
}

func (b *base) RootExec(ctx context.Context, args []string) error {
	return &ContextError{Op: "sudo", Kind: b.kind}
}

func (b *base) Ports(ctx context.Context) (*ServiceInfo, error) {
	return nil, &ContextError{Op: "view", Kind: b.kind}
}

// Eventlog reads the namespace-scoped event log, sorted by the given key.
// The cluster node overrides this with an all-namespaces privileged read.
func (b *base) Eventlog(ctx context.Context, sortKey string) error {
	if err := b.query.Stream(ctx, false, "get", "events", "--sort-by="+sortKey); err != nil {
		return fmt.Errorf("could not read the event log: %w", err)
	}
	return nil
}

// deleteAs issues the privileged delete for self. Kinds with Deletable()
// == false never reach the cluster.
func (b *base) deleteAs(ctx context.Context, self Object) error {
	if !self.Deletable() {
		return &NotDeletableError{Kind: self.Kind()}
	}
	_, stderr, err := b.query.Capture(ctx, true, "delete", string(self.Kind()), self.Name())
	if err != nil {
		return fmt.Errorf("could not remove %s: %s", Path(self), strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Root walks the parent links up to the top of the tree.
func Root(o Object) Object {
	for o.Parent() != nil {
		o = o.Parent()
	}
	return o
}

// Path is the full path of the object: the path fragments from root to
// self joined with "/". The root fragment is "/".
func Path(o Object) string {
	var fragments []string
	for ptr := o; ptr != nil; ptr = ptr.Parent() {
		fragments = append([]string{ptr.PathFragment()}, fragments...)
	}
	return path.Join(fragments...)
}

// Match checks the object's path fragment against an exact name or, when
// the pattern carries glob metacharacters, a shell-style glob.
func Match(o Object, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return o.PathFragment() == pattern
	}
	ok, err := path.Match(pattern, o.PathFragment())
	return err == nil && ok
}

// Cd performs a single resolution step from o and returns the next node
// plus the residual path still to resolve. Callers loop until the residual
// is empty. The tree is never mutated; the result is an existing node.
func Cd(ctx context.Context, o Object, p string) (Object, string, error) {
	// Absolute path: restart from the root.
	if strings.HasPrefix(p, "/") {
		return Root(o), strings.TrimPrefix(p, "/"), nil
	}
	if p == ".." {
		// The root absorbs excess "..".
		if o.Parent() == nil {
			return o, "", nil
		}
		return o.Parent(), "", nil
	}
	if rest, ok := strings.CutPrefix(p, "../"); ok {
		if o.Parent() == nil {
			return nil, "", &NavigationError{Segment: "..", Location: o.PathFragment()}
		}
		return o.Parent(), rest, nil
	}

	children, err := o.Children(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, child := range children {
		frag := child.PathFragment()
		if p == frag {
			return child, "", nil
		}
		if rest, ok := strings.CutPrefix(p, frag+"/"); ok {
			return child, rest, nil
		}
	}
	return nil, "", &NavigationError{Segment: p, Location: o.PathFragment()}
}
