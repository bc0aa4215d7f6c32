// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import "fmt"

// NavigationError reports a path that could not be resolved against the
// current tree: a segment with no matching child, or an attempt to ascend
// past the cluster root.
type NavigationError struct {
	Segment  string // the offending path segment
	Location string // fragment of the node where resolution stopped
}

func (e *NavigationError) Error() string {
	if e.Segment == ".." {
		return "could not change directory beyond root"
	}
	return fmt.Sprintf("could not find %s in %s", e.Segment, e.Location)
}

// ContextError reports an action invoked at the wrong level of the
// hierarchy, or before any cluster was selected with use.
type ContextError struct {
	Op   string
	Kind Kind
}

func (e *ContextError) Error() string {
	if e.Kind == KindNone {
		return fmt.Sprintf("%s requires a cluster, run 'use <cluster>' first", e.Op)
	}
	return fmt.Sprintf("%s cannot be used at %s level", e.Op, e.Kind)
}

// NotDeletableError reports a delete attempted on a protected kind.
type NotDeletableError struct {
	Kind Kind
}

func (e *NotDeletableError) Error() string {
	return fmt.Sprintf("objects of kind '%s' cannot be deleted", e.Kind)
}
