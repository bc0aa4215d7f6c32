// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package config loads the shell configuration: where kubectl runs, how
// the per-namespace credential file path is composed, and optional named
// profiles overriding either per cluster.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// FileName is the config file looked up under the user config directory
// (and, legacy, as a dotfile in the home directory).
const FileName = "k8shrc.yaml"

// Profile is one set of connection settings. The top-level config is the
// default profile; entries under profiles override it for the cluster
// name passed to use.
type Profile struct {
	// KubectlHost is where kubectl runs; empty means locally.
	KubectlHost string `mapstructure:"kubectl_host"`
	// KubeconfigFormat composes the credential file path. It must contain
	// the {namespace} and {cluster} placeholders.
	KubeconfigFormat string `mapstructure:"kubeconfig_format" default:"KUBECONFIG=/etc/kubernetes/{namespace}-{cluster}.config"`
	// AdminNamespace is the namespace whose credentials are privileged.
	AdminNamespace string `mapstructure:"admin_namespace" default:"admin"`
	// SSHOpts are extra options passed to every remote invocation.
	SSHOpts []string `mapstructure:"ssh_opts"`
	// ControlPathFormat, when set, is the socket path template (with an
	// optional {cluster} placeholder) for a persistent multiplexed ssh
	// channel to the kubectl host.
	ControlPathFormat string `mapstructure:"control_path_format"`
}

// Config is the loaded configuration document.
type Config struct {
	Profile  `mapstructure:",squash"`
	Profiles map[string]Profile `mapstructure:"profiles"`
}

// ControlPath renders the mux socket path for a cluster, or "" when
// multiplexing is not configured.
func (p Profile) ControlPath(cluster string) string {
	if p.ControlPathFormat == "" {
		return ""
	}
	return strings.ReplaceAll(p.ControlPathFormat, "{cluster}", cluster)
}

func (p Profile) validate() error {
	for _, placeholder := range []string{"{namespace}", "{cluster}"} {
		if !strings.Contains(p.KubeconfigFormat, placeholder) {
			return fmt.Errorf("kubeconfig_format must contain %s", placeholder)
		}
	}
	return nil
}

// Validate checks the default profile and every named profile.
func (c *Config) Validate() error {
	if err := c.Profile.validate(); err != nil {
		return err
	}
	for name := range c.Profiles {
		if err := c.Resolve(name).validate(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	return nil
}

// Resolve returns the effective profile for a cluster: the defaults with
// any matching named profile's non-empty fields layered on top.
func (c *Config) Resolve(cluster string) Profile {
	effective := c.Profile
	override, ok := c.Profiles[cluster]
	if !ok {
		return effective
	}
	if override.KubectlHost != "" {
		effective.KubectlHost = override.KubectlHost
	}
	if override.KubeconfigFormat != "" {
		effective.KubeconfigFormat = override.KubeconfigFormat
	}
	if override.AdminNamespace != "" {
		effective.AdminNamespace = override.AdminNamespace
	}
	if len(override.SSHOpts) > 0 {
		effective.SSHOpts = override.SSHOpts
	}
	if override.ControlPathFormat != "" {
		effective.ControlPathFormat = override.ControlPathFormat
	}
	return effective
}

// DefaultPath returns the preferred config file location. The legacy
// ~/.k8shrc.yaml is honored when the preferred file does not exist.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	configDir, cerr := os.UserConfigDir()
	if cerr == nil {
		preferred := filepath.Join(configDir, "k8sh", FileName)
		if _, serr := os.Stat(preferred); serr == nil || err != nil {
			return preferred
		}
	}
	legacy := filepath.Join(home, "."+FileName)
	if _, serr := os.Stat(legacy); serr == nil {
		slog.Warn("config path is deprecated, please move it", "path", legacy)
		return legacy
	}
	if cerr == nil {
		return filepath.Join(configDir, "k8sh", FileName)
	}
	return legacy
}

// Load reads the configuration from path ("" selects DefaultPath),
// applying struct defaults and K8SH_* environment overrides. A missing
// file yields the defaults; an unreadable one is reported and ignored.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("K8SH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only feeds Unmarshal for keys viper already knows, so
	// every profile key is bound explicitly: K8SH_KUBECTL_HOST must work
	// without a config file mentioning kubectl_host.
	for _, key := range []string{
		"kubectl_host", "kubeconfig_format", "admin_namespace",
		"ssh_opts", "control_path_format",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind environment: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			// Original behavior: a bad config file is a warning, not a
			// fatal error.
			slog.Warn("bad configuration file, ignoring it", "path", path, "error", err)
		}
	}

	cfg := new(Config)
	defaults.SetDefaults(&cfg.Profile)
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
