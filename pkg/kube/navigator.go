// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"strings"

	slogctx "github.com/veqryn/slog-context"
)

// DefaultQueryBudget bounds how many child expansions one multi-segment ls
// may trigger. Every expansion can cost a kubectl round-trip, so a
// pathological pattern like */*/* would otherwise hammer the apiserver.
const DefaultQueryBudget = 15

// Navigator tracks the current position in the tree and implements the
// multi-segment cd and ls semantics on top of the single-step Object
// resolution. The zero position (before any use) has no current object.
type Navigator struct {
	current Object
	budget  int
}

// NewNavigator returns a navigator with the default query budget.
func NewNavigator() *Navigator {
	return &Navigator{budget: DefaultQueryBudget}
}

// WithBudget overrides the ls query budget.
func (n *Navigator) WithBudget(budget int) *Navigator {
	n.budget = budget
	return n
}

// Current returns the current object, nil before any Use.
func (n *Navigator) Current() Object { return n.current }

// Use rebinds the navigator to a freshly constructed tree root.
func (n *Navigator) Use(root Object) { n.current = root }

// Resolve walks path from the current object and returns the target
// without moving the current pointer.
func (n *Navigator) Resolve(ctx context.Context, path string) (Object, error) {
	if n.current == nil {
		return nil, &ContextError{Op: "cd", Kind: KindNone}
	}
	cur, rest := n.current, path
	for rest != "" {
		next, residual, err := Cd(ctx, cur, rest)
		if err != nil {
			return nil, err
		}
		cur, rest = next, residual
	}
	return cur, nil
}

// Cd moves the current pointer. An empty path resets to the cluster root.
// On any resolution error the current position is left unchanged.
func (n *Navigator) Cd(ctx context.Context, path string) error {
	if n.current == nil {
		return &ContextError{Op: "cd", Kind: KindNone}
	}
	if path == "" {
		n.current = Root(n.current)
		return nil
	}
	target, err := n.Resolve(ctx, path)
	if err != nil {
		return err
	}
	n.current = target
	return nil
}

// Ls lists objects matching a pattern relative to the current object. An
// empty pattern lists the current children. Otherwise the pattern is
// resolved segment by segment over an ordered candidate set, without
// deduplication: an empty segment expands every candidate to its children,
// ".." maps candidates to their parents (dropping the rootless), and any
// other segment filters candidate children by exact or glob match.
//
// Each filtering or expanding segment charges one budget unit per
// candidate it is evaluated against; exceeding the budget aborts the
// whole listing with an empty result.
func (n *Navigator) Ls(ctx context.Context, pattern string) ([]Object, error) {
	if n.current == nil {
		return nil, &ContextError{Op: "ls", Kind: KindNone}
	}
	if pattern == "" {
		return n.current.Children(ctx)
	}

	queries := 0
	candidates := []Object{n.current}
	for _, segment := range strings.Split(pattern, "/") {
		var next []Object
		switch segment {
		case "..":
			for _, c := range candidates {
				if parent := c.Parent(); parent != nil {
					next = append(next, parent)
				}
			}
		case "":
			for _, c := range candidates {
				children, err := c.Children(ctx)
				if err != nil {
					return nil, err
				}
				next = append(next, children...)
			}
		default:
			for _, c := range candidates {
				queries++
				if queries > n.budget {
					slogctx.FromCtx(ctx).Warn("ls aborted: pattern too broad",
						"pattern", pattern, "budget", n.budget)
					return []Object{}, nil
				}
				children, err := c.Children(ctx)
				if err != nil {
					return nil, err
				}
				for _, child := range children {
					if Match(child, segment) {
						next = append(next, child)
					}
				}
			}
		}
		// A segment with no matches short-circuits the whole listing.
		if len(next) == 0 {
			return []Object{}, nil
		}
		candidates = next
	}
	return candidates, nil
}
