// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kubectl

import (
	"context"
	"errors"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/monadic/k8sh/pkg/kube"
)

// Options carries the per-cluster settings a Kubectl is built from. The
// kubeconfig format is threaded explicitly through every derived binding;
// there is no process-wide default to mutate.
type Options struct {
	// KubeconfigFormat composes the credential file path, with {namespace}
	// and {cluster} placeholders. Privileged invocations substitute the
	// admin namespace and run under sudo.
	KubeconfigFormat string
	// AdminNamespace is the namespace whose credentials carry
	// administrator rights.
	AdminNamespace string
	// Remote is where kubectl itself runs (local when its Host is empty).
	Remote *RemoteCommand
}

// Kubectl builds and runs kubectl invocations for one cluster/namespace
// binding. It implements kube.Query.
type Kubectl struct {
	cluster   string
	namespace string
	opts      Options

	// capture is swappable in tests.
	capture func(ctx context.Context, argv ...string) ([]byte, []byte, error)
}

// New returns a Kubectl bound to the cluster's administrator namespace,
// suitable for the tree root. Use WithNamespace for narrower bindings.
func New(cluster string, opts Options) *Kubectl {
	if opts.Remote == nil {
		opts.Remote = &RemoteCommand{}
	}
	k := &Kubectl{cluster: cluster, namespace: opts.AdminNamespace, opts: opts}
	k.capture = k.opts.Remote.Capture
	return k
}

func (k *Kubectl) ClusterName() string   { return k.cluster }
func (k *Kubectl) NamespaceName() string { return k.namespace }

// WithNamespace derives a binding for another namespace of the same
// cluster.
func (k *Kubectl) WithNamespace(namespace string) kube.Query {
	clone := *k
	clone.namespace = namespace
	clone.capture = clone.opts.Remote.Capture
	return &clone
}

// HostExec returns an executor for a cluster host, inheriting the ssh
// options of the kubectl target.
func (k *Kubectl) HostExec(host string) kube.Exec {
	return &RemoteCommand{Host: host, SSHOpts: k.opts.Remote.SSHOpts}
}

// kubeconfig renders the KUBECONFIG assignment for an invocation.
// Privileged commands use the administrator namespace's credentials.
func (k *Kubectl) kubeconfig(privileged bool) string {
	namespace := k.namespace
	if privileged {
		namespace = k.opts.AdminNamespace
	}
	format := k.opts.KubeconfigFormat
	format = strings.ReplaceAll(format, "{namespace}", namespace)
	return strings.ReplaceAll(format, "{cluster}", k.cluster)
}

// argv builds the full command array for a kubectl invocation.
func (k *Kubectl) argv(privileged bool, args ...string) []string {
	var argv []string
	if privileged {
		argv = append(argv, "sudo")
	}
	argv = append(argv, k.kubeconfig(privileged), "kubectl")
	if k.namespace != "" {
		argv = append(argv, "-n", k.namespace)
	}
	return append(argv, args...)
}

// Stream runs kubectl with the given verb and arguments, streaming output.
func (k *Kubectl) Stream(ctx context.Context, privileged bool, args ...string) error {
	return k.opts.Remote.Stream(ctx, k.argv(privileged, args...)...)
}

// Capture runs kubectl and returns its full output.
func (k *Kubectl) Capture(ctx context.Context, privileged bool, args ...string) ([]byte, []byte, error) {
	return k.capture(ctx, k.argv(privileged, args...)...)
}

// JSON runs kubectl with JSON output and decodes the response. Nonzero
// exit and undecodable output both surface as a QueryError; there are no
// retries.
func (k *Kubectl) JSON(ctx context.Context, privileged bool, args ...string) (*unstructured.Unstructured, error) {
	argv := append(append([]string{}, args...), "-o=json")
	stdout, stderr, err := k.capture(ctx, k.argv(privileged, argv...)...)
	if err != nil {
		qerr := &QueryError{Args: argv, Stderr: string(stderr)}
		var execErr *ExecError
		if errors.As(err, &execErr) {
			qerr.ExitCode = execErr.ExitCode
		} else {
			qerr.Err = err
		}
		return nil, qerr
	}
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(stdout); err != nil {
		return nil, &QueryError{Args: argv, Err: err}
	}
	return u, nil
}
