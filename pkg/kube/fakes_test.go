// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// fakeCall records one backend invocation.
type fakeCall struct {
	op         string // json, stream, capture
	namespace  string
	privileged bool
	args       []string
}

// fakeState is shared across every namespace-derived binding of one fake
// query, so tests can count backend round-trips globally.
type fakeState struct {
	responses map[string]string // "<namespace>|<args>" -> JSON document
	calls     []fakeCall
	execs     map[string]*fakeExec
}

// fakeQuery implements Query against canned JSON documents.
type fakeQuery struct {
	cluster   string
	namespace string
	state     *fakeState
}

func newFakeQuery(cluster, namespace string) *fakeQuery {
	return &fakeQuery{
		cluster:   cluster,
		namespace: namespace,
		state: &fakeState{
			responses: map[string]string{},
			execs:     map[string]*fakeExec{},
		},
	}
}

func (f *fakeQuery) respond(namespace string, args ...string) func(string) {
	key := namespace + "|" + strings.Join(args, " ")
	return func(doc string) { f.state.responses[key] = doc }
}

// on registers a canned JSON response for a query in a namespace.
func (f *fakeQuery) on(namespace, doc string, args ...string) {
	f.respond(namespace, args...)(doc)
}

func (f *fakeQuery) ClusterName() string   { return f.cluster }
func (f *fakeQuery) NamespaceName() string { return f.namespace }

func (f *fakeQuery) WithNamespace(namespace string) Query {
	return &fakeQuery{cluster: f.cluster, namespace: namespace, state: f.state}
}

func (f *fakeQuery) JSON(ctx context.Context, privileged bool, args ...string) (*unstructured.Unstructured, error) {
	f.state.calls = append(f.state.calls, fakeCall{op: "json", namespace: f.namespace, privileged: privileged, args: args})
	doc, ok := f.state.responses[f.namespace+"|"+strings.Join(args, " ")]
	if !ok {
		return nil, fmt.Errorf("no canned response for %q in namespace %q", strings.Join(args, " "), f.namespace)
	}
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON([]byte(doc)); err != nil {
		return nil, err
	}
	return u, nil
}

func (f *fakeQuery) Stream(ctx context.Context, privileged bool, args ...string) error {
	f.state.calls = append(f.state.calls, fakeCall{op: "stream", namespace: f.namespace, privileged: privileged, args: args})
	return nil
}

func (f *fakeQuery) Capture(ctx context.Context, privileged bool, args ...string) ([]byte, []byte, error) {
	f.state.calls = append(f.state.calls, fakeCall{op: "capture", namespace: f.namespace, privileged: privileged, args: args})
	return nil, nil, nil
}

func (f *fakeQuery) HostExec(host string) Exec {
	if e, ok := f.state.execs[host]; ok {
		return e
	}
	e := &fakeExec{host: host, captured: map[string]string{}}
	f.state.execs[host] = e
	return e
}

// jsonCalls counts backend JSON queries recorded so far.
func (f *fakeQuery) jsonCalls() int {
	n := 0
	for _, c := range f.state.calls {
		if c.op == "json" {
			n++
		}
	}
	return n
}

func (f *fakeQuery) lastCall() fakeCall {
	return f.state.calls[len(f.state.calls)-1]
}

// fakeExec implements Exec, recording argvs and serving canned captures.
type fakeExec struct {
	host     string
	streamed [][]string
	captured map[string]string // argv joined -> stdout
	calls    [][]string
}

func (f *fakeExec) Stream(ctx context.Context, argv ...string) error {
	f.streamed = append(f.streamed, argv)
	return nil
}

func (f *fakeExec) Capture(ctx context.Context, argv ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, argv)
	if out, ok := f.captured[strings.Join(argv, " ")]; ok {
		return []byte(out), nil, nil
	}
	return nil, nil, nil
}

// listJSON builds a kubectl-style List document with named items.
func listJSON(kind string, names ...string) string {
	items := make([]string, 0, len(names))
	for _, name := range names {
		items = append(items, fmt.Sprintf(`{"apiVersion":"v1","kind":"%s","metadata":{"name":"%s"}}`, kind, name))
	}
	return fmt.Sprintf(`{"apiVersion":"v1","kind":"List","items":[%s]}`, strings.Join(items, ","))
}

// podJSON builds a single-pod document with container statuses.
func podJSON(name, host string, containers ...string) string {
	statuses := make([]string, 0, len(containers))
	for _, c := range containers {
		statuses = append(statuses, fmt.Sprintf(`{"name":"%s","containerID":"docker://%s-id"}`, c, c))
	}
	return fmt.Sprintf(`{"apiVersion":"v1","kind":"Pod","metadata":{"name":"%s"},"spec":{"nodeName":"%s"},"status":{"containerStatuses":[%s]}}`,
		name, host, strings.Join(statuses, ","))
}

// minikubeTree wires the canonical test fixture: cluster minikube with a
// default namespace holding pod failoid (containers http, envoy) and
// service pinkunicorn.
func minikubeTree() (*Cluster, *fakeQuery) {
	q := newFakeQuery("minikube", "admin")
	q.on("admin", listJSON("Namespace", "default"), "get", "namespaces")
	q.on("default", listJSON("Pod", "failoid"), "get", "pods")
	q.on("default", listJSON("Service", "pinkunicorn"), "get", "services")
	q.on("default", podJSON("failoid", "worker1", "http", "envoy"), "get", "pods", "failoid")
	return NewCluster("minikube", q), q
}
