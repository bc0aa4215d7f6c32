// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kubectl

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"
)

// Mux is a persistent ssh control-master channel to the kubectl host.
// There is one logical channel per active connection profile; it must be
// closed before a profile switch replaces it, or the master process is
// orphaned.
type Mux struct {
	host   string
	socket string
	opts   []string
}

// OpenMux starts a control master for host at the given socket path and
// returns a handle for closing it.
func OpenMux(ctx context.Context, host, socket string, sshOpts []string) (*Mux, error) {
	argv := []string{"ssh", "-MNf", "-S", socket}
	argv = append(argv, sshOpts...)
	argv = append(argv, host)

	runner := &RemoteCommand{}
	if _, stderr, err := runner.Capture(ctx, argv...); err != nil {
		return nil, fmt.Errorf("opening control channel to %s: %w (%s)", host, err, stderr)
	}
	slogctx.FromCtx(ctx).Debug("control channel opened", "host", host, "socket", socket)
	return &Mux{host: host, socket: socket, opts: sshOpts}, nil
}

// Socket is the control socket path, passed to ssh invocations with -S.
func (m *Mux) Socket() string { return m.socket }

// Close asks the control master to exit. The handle must not be reused.
func (m *Mux) Close(ctx context.Context) error {
	argv := []string{"ssh", "-S", m.socket, "-O", "exit", m.host}
	runner := &RemoteCommand{}
	if _, stderr, err := runner.Capture(ctx, argv...); err != nil {
		return fmt.Errorf("closing control channel to %s: %w (%s)", m.host, err, stderr)
	}
	slogctx.FromCtx(ctx).Debug("control channel closed", "host", m.host)
	return nil
}
