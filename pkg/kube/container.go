// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Container is a leaf of the tree: one container of a pod, with its
// content ID and an executor bound to the host the pod runs on. Most of
// the diagnostic actions live here.
type Container struct {
	base
	id   string
	host string
	exec Exec
}

func newContainer(name string, query Query, parent *Pod, id, host string) *Container {
	return &Container{
		base: base{name: name, kind: KindContainer, query: query, parent: parent},
		id:   id,
		host: host,
		exec: query.HostExec(host),
	}
}

// ID is the container's content identifier on its host.
func (c *Container) ID() string { return c.id }

// Host is the cluster node the container runs on.
func (c *Container) Host() string { return c.host }

func (c *Container) Deletable() bool { return false }

// Children never queries: containers are leaves.
func (c *Container) Children(ctx context.Context) ([]Object, error) {
	return []Object{}, nil
}

// Refresh is a noop: containers cache nothing of their own.
func (c *Container) Refresh() {}

func (c *Container) Delete(ctx context.Context) error {
	return c.deleteAs(ctx, c)
}

// Ps shows the processes running inside the container.
func (c *Container) Ps(ctx context.Context) error {
	if err := c.exec.Stream(ctx, "sudo", "docker", "top", c.id); err != nil {
		return fmt.Errorf("executing docker top on %s: %w", c.host, err)
	}
	return nil
}

// Tail streams the container's logs, optionally following them.
func (c *Container) Tail(ctx context.Context, follow bool) error {
	args := []string{"logs"}
	if follow {
		args = append(args, "-f")
	}
	args = append(args, c.parent.Name(), c.name)
	if err := c.query.Stream(ctx, false, args...); err != nil {
		return fmt.Errorf("could not read the logs: %w", err)
	}
	return nil
}

// Nsenter runs a command on the container's host inside the container's
// namespaces. args carries the namespace flags and the command, as for
// nsenter(1). The container's main PID is looked up first.
func (c *Container) Nsenter(ctx context.Context, args []string) error {
	stdout, _, err := c.exec.Capture(ctx, "sudo", "docker", "inspect", "-f", "{{.State.Pid}}", c.id)
	if err != nil {
		return fmt.Errorf("finding the PID of the container: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(stdout)))
	if err != nil {
		return fmt.Errorf("finding the PID of the container: unparseable inspect output %q", strings.TrimSpace(string(stdout)))
	}
	argv := append([]string{"sudo", "nsenter", "-t", strconv.Itoa(pid)}, args...)
	if err := c.exec.Stream(ctx, argv...); err != nil {
		return fmt.Errorf("command %s: %w", strings.Join(argv, " "), err)
	}
	return nil
}

// Exec runs a command within the container through kubectl. This needs the
// administrator profile.
func (c *Container) Exec(ctx context.Context, args []string) error {
	argv := append([]string{"exec", c.parent.Name(), "-c", c.name, "--"}, args...)
	if err := c.query.Stream(ctx, true, argv...); err != nil {
		return fmt.Errorf("execution of '%s' failed: %w", strings.Join(args, " "), err)
	}
	return nil
}

// RootExec runs a command within the container as root, going through
// docker on the container's host.
func (c *Container) RootExec(ctx context.Context, args []string) error {
	argv := append([]string{"sudo", "docker", "exec", "--user", "root", c.id}, args...)
	if err := c.exec.Stream(ctx, argv...); err != nil {
		return fmt.Errorf("command %s: %w", strings.Join(argv, " "), err)
	}
	return nil
}
