// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package kubectl implements the two external boundaries of the shell: the
// kubectl query runner and the (optionally ssh-wrapped) remote command
// executor, including the persistent ssh control-master channel.
package kubectl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	slogctx "github.com/veqryn/slog-context"
)

var stderrStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

var envAssignment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// RemoteCommand runs argument vectors either locally (empty Host) or on a
// named host through ssh. When ControlPath is set, remote invocations are
// routed through the control-master socket at that path instead of opening
// a fresh connection per call.
type RemoteCommand struct {
	Host        string
	SSHOpts     []string
	ControlPath string

	// Output destinations, overridable in tests. Nil means the process
	// standard streams.
	Stdout io.Writer
	Stderr io.Writer
}

// argv wraps a command for the target host. Local commands are returned
// as-is; leading environment assignments are separated out by run, since
// only a remote shell would interpret them.
func (r *RemoteCommand) argv(command []string) []string {
	if r.Host == "" {
		return command
	}
	wrapped := []string{"ssh", "-T"}
	if r.ControlPath != "" {
		wrapped = append(wrapped, "-S", r.ControlPath)
	}
	wrapped = append(wrapped, r.SSHOpts...)
	wrapped = append(wrapped, r.Host)
	return append(wrapped, command...)
}

// command builds the exec.Cmd for argv. Locally there is no shell to
// interpret leading NAME=value words, so they are moved into the
// environment.
func (r *RemoteCommand) command(ctx context.Context, argv []string) *exec.Cmd {
	var env []string
	if r.Host == "" {
		for len(argv) > 1 && envAssignment.MatchString(argv[0]) {
			env = append(env, argv[0])
			argv = argv[1:]
		}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd
}

func (r *RemoteCommand) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *RemoteCommand) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// Stream runs argv and echoes its output line by line as it is produced,
// with stderr lines emphasized. An interrupt during the run terminates the
// child and counts as a normal completion of this action only. A nonzero
// exit is an ExecError.
func (r *RemoteCommand) Stream(ctx context.Context, argv ...string) error {
	full := r.argv(argv)
	slogctx.FromCtx(ctx).Debug("streaming command", "argv", full)

	cmd := r.command(ctx, full)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		echoLines(stdoutPipe, r.stdout(), nil)
	}()
	go func() {
		defer wg.Done()
		echoLines(stderrPipe, r.stderr(), &stderrStyle)
	}()

	// Ctrl-C stops the running action, not the session. The shell ignores
	// SIGINT at the prompt; that disposition has to survive this handler.
	ignored := signal.Ignored(os.Interrupt)
	var interrupted atomic.Bool
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigc:
			interrupted.Store(true)
			_ = cmd.Process.Signal(syscall.SIGTERM)
		case <-done:
		}
	}()

	wg.Wait()
	err = cmd.Wait()
	close(done)
	signal.Stop(sigc)
	if ignored {
		signal.Ignore(os.Interrupt)
	}

	if interrupted.Load() {
		return nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExecError{Argv: full, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}

// echoLines copies out one line at a time, trailing newline stripped,
// optionally styled.
func echoLines(in io.Reader, out io.Writer, style *lipgloss.Style) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if style != nil {
			line = style.Render(line)
		}
		fmt.Fprintln(out, line)
	}
}

// Capture runs argv and returns its full output. A nonzero exit is an
// ExecError carrying the captured stderr.
func (r *RemoteCommand) Capture(ctx context.Context, argv ...string) (stdout, stderr []byte, err error) {
	full := r.argv(argv)
	start := time.Now()

	var outBuf, errBuf bytes.Buffer
	cmd := r.command(ctx, full)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()

	slogctx.FromCtx(ctx).Debug("captured command", "argv", full, "duration", time.Since(start))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return outBuf.Bytes(), errBuf.Bytes(), &ExecError{
				Argv:     full,
				ExitCode: exitErr.ExitCode(),
				Stderr:   errBuf.String(),
			}
		}
		return outBuf.Bytes(), errBuf.Bytes(), fmt.Errorf("run %s: %w", argv[0], err)
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}

// WithControlPath returns a copy routed through the given control socket.
func (r *RemoteCommand) WithControlPath(path string) *RemoteCommand {
	clone := *r
	clone.ControlPath = path
	return &clone
}

// Target describes the execution target for logging and prompts.
func (r *RemoteCommand) Target() string {
	if r.Host == "" {
		return "local"
	}
	return r.Host
}
