// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package shell is the interactive front end: the prompt, the line
// parsing, and the dispatch of commands onto the Navigator and the
// resolved tree nodes. Every action error is recovered here and printed;
// the loop itself never crashes on a failed command.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/shlex"

	"github.com/monadic/k8sh/pkg/bookmarks"
	"github.com/monadic/k8sh/pkg/config"
	"github.com/monadic/k8sh/pkg/kube"
	"github.com/monadic/k8sh/pkg/kubectl"
)

var (
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	clusterStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	pathStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("27"))
)

// Shell runs the interactive loop.
type Shell struct {
	cfg      *config.Config
	nav      *kube.Navigator
	marks    *bookmarks.Store
	mux      *kubectl.Mux
	in       *bufio.Reader
	out      io.Writer
	commands map[string]command
}

// Option configures a Shell.
type Option func(*Shell)

// WithInput overrides the input stream (stdin by default).
func WithInput(in io.Reader) Option {
	return func(s *Shell) { s.in = bufio.NewReader(in) }
}

// WithOutput overrides the output stream (stdout by default).
func WithOutput(out io.Writer) Option {
	return func(s *Shell) { s.out = out }
}

// WithBookmarks overrides the bookmark store.
func WithBookmarks(store *bookmarks.Store) Option {
	return func(s *Shell) { s.marks = store }
}

// New builds a shell for the given configuration.
func New(cfg *config.Config, opts ...Option) *Shell {
	s := &Shell{
		cfg: cfg,
		nav: kube.NewNavigator(),
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.marks == nil {
		store, err := bookmarks.NewStore()
		if err != nil {
			fmt.Fprintln(s.out, errStyle.Render(err.Error()))
			store = bookmarks.BuiltinsOnly()
		}
		s.marks = store
	}
	s.commands = commandTable()
	return s
}

// Navigator exposes the navigation state, mainly for tests.
func (s *Shell) Navigator() *kube.Navigator { return s.nav }

// Startup dispatches one command line before the interactive loop, used
// for the --cluster startup flag. Errors are reported like any other
// command's.
func (s *Shell) Startup(ctx context.Context, line string) {
	s.dispatch(ctx, line)
}

// Run reads and dispatches commands until exit or EOF. Ctrl-C at the
// prompt is ignored; during a streamed action it is handled by the
// executor and stops only that action.
func (s *Shell) Run(ctx context.Context) error {
	signal.Ignore(os.Interrupt)

	for {
		fmt.Fprint(s.out, s.prompt())
		line, err := s.in.ReadString('\n')
		if err != nil {
			// EOF (ctrl-D) exits like the exit command.
			fmt.Fprintln(s.out)
			s.quit(ctx)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if stop := s.dispatch(ctx, line); stop {
			s.quit(ctx)
			return nil
		}
	}
}

func (s *Shell) quit(ctx context.Context) {
	if s.mux != nil {
		if err := s.mux.Close(ctx); err != nil {
			fmt.Fprintln(s.out, errStyle.Render(err.Error()))
		}
		s.mux = nil
	}
	fmt.Fprintln(s.out, "Bye! Keep navigating!")
}

// dispatch parses and runs one input line, reporting but containing any
// error. It returns true when the session should end.
func (s *Shell) dispatch(ctx context.Context, line string) bool {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintln(s.out, errStyle.Render(fmt.Sprintf("could not parse command line: %v", err)))
		return false
	}
	if len(args) == 0 {
		return false
	}
	cmd, ok := s.commands[args[0]]
	if !ok {
		fmt.Fprintln(s.out, errStyle.Render(fmt.Sprintf("unknown command %s, try 'help'", args[0])))
		return false
	}
	if err := cmd.run(ctx, s, args[1:]); err != nil {
		if errors.Is(err, errExit) {
			return true
		}
		fmt.Fprintln(s.out, errStyle.Render(err.Error()))
	}
	return false
}

func (s *Shell) prompt() string {
	current := s.nav.Current()
	if current == nil {
		return "NONE (none) $ "
	}
	cluster := clusterStyle.Render(kube.Root(current).Name())
	path := pathStyle.Render(kube.Path(current))
	return fmt.Sprintf("%s:%s (%s)$ ", cluster, path, current.Kind())
}

// node returns the current object, or a ContextError naming the operation
// when no cluster has been selected yet.
func (s *Shell) node(op string) (kube.Object, error) {
	current := s.nav.Current()
	if current == nil {
		return nil, &kube.ContextError{Op: op, Kind: kube.KindNone}
	}
	return current, nil
}

// confirm reads a y/n answer from the shell input.
func (s *Shell) confirm() bool {
	response, err := s.in.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// expandPath substitutes a @bookmark reference.
func (s *Shell) expandPath(path string) (string, error) {
	name, ok := strings.CutPrefix(path, "@")
	if !ok {
		return path, nil
	}
	mark, found := s.marks.Get(name)
	if !found {
		return "", fmt.Errorf("no bookmark named %s", name)
	}
	return mark.Path, nil
}
