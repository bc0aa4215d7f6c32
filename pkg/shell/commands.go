// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package shell

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"sigs.k8s.io/yaml"

	"github.com/monadic/k8sh/pkg/bookmarks"
	"github.com/monadic/k8sh/pkg/kube"
	"github.com/monadic/k8sh/pkg/kubectl"
)

const (
	catNav       = "kubernetes navigation"
	catContainer = "container-level debugging"
	catSession   = "session"
)

var (
	errExit    = errors.New("exit")
	titleCaser = cases.Title(language.English)
)

// command is one dispatchable shell command.
type command struct {
	name     string
	category string
	usage    string
	short    string
	run      func(ctx context.Context, s *Shell, args []string) error
}

func commandTable() map[string]command {
	all := []command{
		{
			name:     "use",
			category: catNav,
			usage:    "use <cluster>",
			short:    "Select the cluster to operate on",
			run:      cmdUse,
		},
		{
			name:     "cd",
			category: catNav,
			usage:    "cd [path]",
			short:    "Change position in the hierarchy; no argument resets to the cluster root",
			run:      cmdCd,
		},
		{
			name:     "ls",
			category: catNav,
			usage:    "ls [pattern]",
			short:    "List children, or everything matching a /-separated glob pattern",
			run:      cmdLs,
		},
		{
			name:     "pwd",
			category: catNav,
			usage:    "pwd",
			short:    "Print the current path",
			run:      cmdPwd,
		},
		{
			name:     "refresh",
			category: catNav,
			usage:    "refresh",
			short:    "Drop the cached listing of the current object",
			run:      cmdRefresh,
		},
		{
			name:     "rm",
			category: catNav,
			usage:    "rm <path>... [-i]",
			short:    "Delete the objects at the given paths (-i asks per object)",
			run:      cmdRm,
		},
		{
			name:     "eventlog",
			category: catNav,
			usage:    "eventlog [sort-key]",
			short:    "Read the event log (all namespaces when at cluster level)",
			run:      cmdEventlog,
		},
		{
			name:     "bookmark",
			category: catNav,
			usage:    "bookmark [save <name> [path] | rm <name>]",
			short:    "List or manage saved navigation targets (cd @name)",
			run:      cmdBookmark,
		},
		{
			name:     "ps",
			category: catContainer,
			usage:    "ps",
			short:    "Show processes running in the container",
			run:      cmdPs,
		},
		{
			name:     "tail",
			category: catContainer,
			usage:    "tail [-f]",
			short:    "Get the logs of the container",
			run:      cmdTail,
		},
		{
			name:     "nsenter",
			category: catContainer,
			usage:    "nsenter <flags> <command>",
			short:    "Run a command from the worker inside the container's namespaces",
			run:      cmdNsenter,
		},
		{
			name:     "exec",
			category: catContainer,
			usage:    "exec <command>",
			short:    "Run a command within the container",
			run:      cmdExec,
		},
		{
			name:     "sudo",
			category: catContainer,
			usage:    "sudo <command>",
			short:    "Run a command within the container as root",
			run:      cmdSudo,
		},
		{
			name:     "view",
			category: catNav,
			usage:    "view",
			short:    "Show the parsed port data of the current service",
			run:      cmdView,
		},
		{
			name:     "help",
			category: catSession,
			usage:    "help",
			short:    "Show this help",
			run:      cmdHelp,
		},
		{
			name:     "exit",
			category: catSession,
			usage:    "exit",
			short:    "Exit the program",
			run: func(ctx context.Context, s *Shell, args []string) error {
				return errExit
			},
		},
	}

	table := make(map[string]command, len(all))
	for _, c := range all {
		table[c.name] = c
	}
	return table
}

func usageError(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

func cmdUse(ctx context.Context, s *Shell, args []string) error {
	if len(args) != 1 {
		return usageError("use <cluster>")
	}
	cluster := args[0]
	profile := s.cfg.Resolve(cluster)

	// The control channel belongs to the previous profile; it has to go
	// before a new one is opened.
	if s.mux != nil {
		if err := s.mux.Close(ctx); err != nil {
			fmt.Fprintln(s.out, errStyle.Render(err.Error()))
		}
		s.mux = nil
	}

	remote := &kubectl.RemoteCommand{Host: profile.KubectlHost, SSHOpts: profile.SSHOpts}
	if socket := profile.ControlPath(cluster); socket != "" && profile.KubectlHost != "" {
		mux, err := kubectl.OpenMux(ctx, profile.KubectlHost, socket, profile.SSHOpts)
		if err != nil {
			fmt.Fprintln(s.out, errStyle.Render(fmt.Sprintf("%v, continuing without multiplexing", err)))
		} else {
			s.mux = mux
			remote = remote.WithControlPath(socket)
		}
	}

	kc := kubectl.New(cluster, kubectl.Options{
		KubeconfigFormat: profile.KubeconfigFormat,
		AdminNamespace:   profile.AdminNamespace,
		Remote:           remote,
	})
	s.nav.Use(kube.NewCluster(cluster, kc))
	return nil
}

func cmdCd(ctx context.Context, s *Shell, args []string) error {
	if len(args) > 1 {
		return usageError("cd [path]")
	}
	path := ""
	if len(args) == 1 {
		expanded, err := s.expandPath(args[0])
		if err != nil {
			return err
		}
		path = expanded
	}
	return s.nav.Cd(ctx, path)
}

func cmdLs(ctx context.Context, s *Shell, args []string) error {
	if len(args) > 1 {
		return usageError("ls [pattern]")
	}
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}
	objects, err := s.nav.Ls(ctx, pattern)
	if err != nil {
		return err
	}
	for _, o := range objects {
		if pattern == "" {
			fmt.Fprintln(s.out, o.PathFragment())
		} else {
			fmt.Fprintln(s.out, kube.Path(o))
		}
	}
	return nil
}

func cmdPwd(ctx context.Context, s *Shell, args []string) error {
	current, err := s.node("pwd")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, kube.Path(current))
	return nil
}

func cmdRefresh(ctx context.Context, s *Shell, args []string) error {
	current, err := s.node("refresh")
	if err != nil {
		return err
	}
	current.Refresh()
	return nil
}

func cmdRm(ctx context.Context, s *Shell, args []string) error {
	interactive := false
	var paths []string
	for _, a := range args {
		if a == "-i" {
			interactive = true
		} else {
			paths = append(paths, a)
		}
	}
	if len(paths) == 0 {
		return usageError("rm <path>... [-i]")
	}
	current, err := s.node("rm")
	if err != nil {
		return err
	}
	// Deletions invalidate the cached child list whatever the outcome.
	defer current.Refresh()

	for _, path := range paths {
		target, err := s.nav.Resolve(ctx, path)
		if err != nil {
			fmt.Fprintln(s.out, errStyle.Render(fmt.Sprintf("skipping %s: %v", path, err)))
			continue
		}
		if interactive {
			fmt.Fprintf(s.out, "remove %s? [y/N] ", kube.Path(target))
			if !s.confirm() {
				continue
			}
		}
		if err := target.Delete(ctx); err != nil {
			fmt.Fprintln(s.out, errStyle.Render(err.Error()))
		}
	}
	return nil
}

func cmdEventlog(ctx context.Context, s *Shell, args []string) error {
	current, err := s.node("eventlog")
	if err != nil {
		return err
	}
	sortKey := ".lastTimestamp"
	if len(args) > 0 {
		sortKey = args[0]
	}
	return current.Eventlog(ctx, sortKey)
}

func cmdBookmark(ctx context.Context, s *Shell, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPATH\tCATEGORY\tDESCRIPTION")
		for _, b := range s.marks.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Name, b.Path, b.Category, b.Description)
		}
		return w.Flush()
	}
	switch args[0] {
	case "save":
		if len(args) < 2 || len(args) > 3 {
			return usageError("bookmark save <name> [path]")
		}
		path := ""
		if len(args) == 3 {
			path = args[2]
		} else {
			current, err := s.node("bookmark save")
			if err != nil {
				return err
			}
			path = kube.Path(current)
		}
		return s.marks.Save(bookmarks.Bookmark{Name: args[1], Path: path})
	case "rm":
		if len(args) != 2 {
			return usageError("bookmark rm <name>")
		}
		return s.marks.Delete(args[1])
	default:
		return usageError("bookmark [save <name> [path] | rm <name>]")
	}
}

func cmdPs(ctx context.Context, s *Shell, args []string) error {
	current, err := s.node("ps")
	if err != nil {
		return err
	}
	return current.Ps(ctx)
}

func cmdTail(ctx context.Context, s *Shell, args []string) error {
	current, err := s.node("tail")
	if err != nil {
		return err
	}
	follow := len(args) == 1 && args[0] == "-f"
	return current.Tail(ctx, follow)
}

func cmdNsenter(ctx context.Context, s *Shell, args []string) error {
	if len(args) == 0 {
		return usageError("nsenter <flags> <command>")
	}
	current, err := s.node("nsenter")
	if err != nil {
		return err
	}
	return current.Nsenter(ctx, args)
}

func cmdExec(ctx context.Context, s *Shell, args []string) error {
	if len(args) == 0 {
		return usageError("exec <command>")
	}
	current, err := s.node("exec")
	if err != nil {
		return err
	}
	return current.Exec(ctx, args)
}

func cmdSudo(ctx context.Context, s *Shell, args []string) error {
	if len(args) == 0 {
		return usageError("sudo <command>")
	}
	current, err := s.node("sudo")
	if err != nil {
		return err
	}
	return current.RootExec(ctx, args)
}

func cmdView(ctx context.Context, s *Shell, args []string) error {
	current, err := s.node("view")
	if err != nil {
		return err
	}
	info, err := current.Ports(ctx)
	if err != nil {
		return err
	}
	rendered, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("rendering service data: %w", err)
	}
	fmt.Fprint(s.out, string(rendered))
	return nil
}

func cmdHelp(ctx context.Context, s *Shell, args []string) error {
	byCategory := map[string][]command{}
	for _, c := range s.commands {
		byCategory[c.category] = append(byCategory[c.category], c)
	}
	for _, category := range []string{catNav, catContainer, catSession} {
		commands := byCategory[category]
		sort.Slice(commands, func(i, j int) bool { return commands[i].name < commands[j].name })
		fmt.Fprintf(s.out, "%s:\n", titleCaser.String(category))
		w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		for _, c := range commands {
			fmt.Fprintf(w, "  %s\t%s\n", c.usage, c.short)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(s.out)
	}
	return nil
}
