// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Command k8sh is an interactive shell for kubernetes clusters.
//
// k8sh lets you drill down from cluster to namespace, to pods and
// services, and from there to individual containers, inspecting them and
// executing processes in their namespaces as if the cluster were a
// filesystem.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/monadic/k8sh/pkg/config"
	"github.com/monadic/k8sh/pkg/shell"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "k8sh",
	Short: "Navigate kubernetes clusters like a filesystem",
	Long: `k8sh - an interactive shell for kubernetes clusters

k8sh presents the cluster → namespace → pod/service → container hierarchy
as a filesystem. Select a cluster with 'use', move around with 'cd' and
'ls' (with glob patterns), and run diagnostics against the object you are
standing on: ps, tail, nsenter, exec, sudo, view, eventlog, rm.

Configuration lives in k8shrc.yaml under your user config directory; see
'help' inside the shell for the command reference.

Environment Variables:
  K8SH_KUBECTL_HOST      Host where kubectl runs (default: local)
  K8SH_KUBECONFIG_FORMAT Credential path template with {namespace} and {cluster}
`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runShell,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "configuration file path")
	pflags.String("cluster", "", "cluster to select on startup")
	pflags.String("log-format", "auto", "log format (auto|json|text)")
	pflags.CountP("log-level", "v", "log level (-v=warn, -vv=info, -vvv=debug)")

	viper.SetEnvPrefix("K8SH")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("k8sh version %s (built %s)\n", BuildTag, BuildDate)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion script",
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

func runShell(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	ctx := setupLogging(cmd.Context())

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	sh := shell.New(cfg)
	if cluster := viper.GetString("cluster"); cluster != "" {
		sh.Startup(ctx, "use "+cluster)
	}
	return sh.Run(ctx)
}
