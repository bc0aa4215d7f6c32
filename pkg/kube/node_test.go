// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// child fetches a node's children and returns the one with the given path
// fragment, failing the test when it is absent.
func child(t *testing.T, o Object, fragment string) Object {
	t.Helper()
	children, err := o.Children(context.Background())
	require.NoError(t, err)
	for _, c := range children {
		if c.PathFragment() == fragment {
			return c
		}
	}
	require.Failf(t, "child not found", "%s has no child %s", Path(o), fragment)
	return nil
}

func TestPathComposition(t *testing.T) {
	cluster, _ := minikubeTree()
	ns := child(t, cluster, "default")
	pod := child(t, ns, "pod.failoid")
	container := child(t, pod, "http")
	service := child(t, ns, "service.pinkunicorn")

	assert.Equal(t, "/", Path(cluster))
	assert.Equal(t, "/default", Path(ns))
	assert.Equal(t, "/default/pod.failoid", Path(pod))
	assert.Equal(t, "/default/pod.failoid/http", Path(container))
	assert.Equal(t, "/default/service.pinkunicorn", Path(service))
}

func TestClusterChildren(t *testing.T) {
	cluster, q := minikubeTree()

	children, err := cluster.Children(context.Background())
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "default", children[0].Name())
	assert.Equal(t, KindNamespace, children[0].Kind())

	call := q.lastCall()
	assert.True(t, call.privileged, "namespace listing must use the administrator profile")
	assert.Equal(t, []string{"get", "namespaces"}, call.args)
	assert.Equal(t, "admin", call.namespace)

	// The second access serves the cache.
	_, err = cluster.Children(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, q.jsonCalls())
}

func TestNamespaceChildrenOrder(t *testing.T) {
	cluster, q := minikubeTree()
	ns := child(t, cluster, "default")

	children, err := ns.Children(context.Background())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, KindPod, children[0].Kind())
	assert.Equal(t, KindService, children[1].Kind())

	// Pod and service listings run against the namespace binding,
	// unprivileged.
	for _, call := range q.state.calls[1:] {
		assert.False(t, call.privileged)
		assert.Equal(t, "default", call.namespace)
	}
}

func TestRefreshRequeries(t *testing.T) {
	cluster, q := minikubeTree()

	_, err := cluster.Children(context.Background())
	require.NoError(t, err)
	cluster.Refresh()
	_, err = cluster.Children(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, q.jsonCalls())
}

func TestPodGatherIsOneQuery(t *testing.T) {
	cluster, q := minikubeTree()
	ns := child(t, cluster, "default")
	pod := child(t, ns, "pod.failoid").(*Pod)
	before := q.jsonCalls()

	children, err := pod.Children(context.Background())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "http", children[0].Name())
	assert.Equal(t, "envoy", children[1].Name())
	assert.Equal(t, "http-id", children[0].(*Container).ID())
	assert.Equal(t, "worker1", children[0].(*Container).Host())

	// The hostname came along with the container list.
	hostname, err := pod.Hostname(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "worker1", hostname)
	assert.Equal(t, before+1, q.jsonCalls())

	// Refresh drops the hostname together with the children.
	pod.Refresh()
	hostname, err = pod.Hostname(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "worker1", hostname)
	assert.Equal(t, before+2, q.jsonCalls())
}

func TestPodWithoutNodeName(t *testing.T) {
	q := newFakeQuery("minikube", "admin")
	q.on("default", `{"apiVersion":"v1","kind":"Pod","metadata":{"name":"pending"},"status":{}}`,
		"get", "pods", "pending")
	pod := newPod("pending", q.WithNamespace("default"), nil)

	_, err := pod.Children(context.Background())
	assert.EqualError(t, err, "could not fetch the hostname of pod pending")
}

func TestLeavesNeverQuery(t *testing.T) {
	cluster, q := minikubeTree()
	ns := child(t, cluster, "default")
	container := child(t, child(t, ns, "pod.failoid"), "http")
	service := child(t, ns, "service.pinkunicorn")
	before := q.jsonCalls()

	for _, leaf := range []Object{container, service} {
		children, err := leaf.Children(context.Background())
		require.NoError(t, err)
		assert.Empty(t, children)
	}
	assert.Equal(t, before, q.jsonCalls())
}

func TestMatch(t *testing.T) {
	cluster, _ := minikubeTree()
	pod := child(t, child(t, cluster, "default"), "pod.failoid")

	tests := []struct {
		pattern string
		want    bool
	}{
		{"pod.failoid", true},
		{"failoid", false}, // exact match is on the fragment, prefix included
		{"pod.f*", true},
		{"pod.pinkunicorn", false},
		{"pod.?ailoid", true},
		{"pod.[fg]ailoid", true},
		{"*", true},
		{"pod.[", false}, // malformed glob never matches
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(pod, tt.pattern), "pattern %q", tt.pattern)
	}
}

func TestCdSingleStep(t *testing.T) {
	ctx := context.Background()
	cluster, _ := minikubeTree()
	ns := child(t, cluster, "default")

	t.Run("absolute restarts from root", func(t *testing.T) {
		next, rest, err := Cd(ctx, ns, "/default/pod.failoid")
		require.NoError(t, err)
		assert.Same(t, Object(cluster), next)
		assert.Equal(t, "default/pod.failoid", rest)
	})

	t.Run("dotdot ascends", func(t *testing.T) {
		next, rest, err := Cd(ctx, ns, "..")
		require.NoError(t, err)
		assert.Same(t, Object(cluster), next)
		assert.Empty(t, rest)
	})

	t.Run("root absorbs bare dotdot", func(t *testing.T) {
		next, rest, err := Cd(ctx, cluster, "..")
		require.NoError(t, err)
		assert.Same(t, Object(cluster), next)
		assert.Empty(t, rest)
	})

	t.Run("dotdot with residual fails at root", func(t *testing.T) {
		_, _, err := Cd(ctx, cluster, "../default")
		assert.EqualError(t, err, "could not change directory beyond root")
	})

	t.Run("child step leaves a residual", func(t *testing.T) {
		next, rest, err := Cd(ctx, cluster, "default/pod.failoid/http")
		require.NoError(t, err)
		assert.Same(t, ns, next)
		assert.Equal(t, "pod.failoid/http", rest)
	})

	t.Run("unknown segment", func(t *testing.T) {
		_, _, err := Cd(ctx, cluster, "staging")
		var nav *NavigationError
		require.ErrorAs(t, err, &nav)
		assert.EqualError(t, err, "could not find staging in /")
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	cluster, q := minikubeTree()
	ns := child(t, cluster, "default")
	pod := child(t, ns, "pod.failoid")
	container := child(t, pod, "http")
	service := child(t, ns, "service.pinkunicorn")

	t.Run("protected kinds never reach the cluster", func(t *testing.T) {
		captures := len(q.state.calls)
		for _, o := range []Object{cluster, container} {
			err := o.Delete(ctx)
			var notDeletable *NotDeletableError
			require.ErrorAs(t, err, &notDeletable)
		}
		assert.Len(t, q.state.calls, captures)
	})

	t.Run("deletable kinds issue a privileged delete", func(t *testing.T) {
		for _, tt := range []struct {
			object Object
			args   []string
		}{
			{ns, []string{"delete", "namespace", "default"}},
			{pod, []string{"delete", "pod", "failoid"}},
			{service, []string{"delete", "service", "pinkunicorn"}},
		} {
			require.NoError(t, tt.object.Delete(ctx))
			call := q.lastCall()
			assert.Equal(t, "capture", call.op)
			assert.True(t, call.privileged)
			assert.Equal(t, tt.args, call.args)
		}
	})
}

func TestEventlog(t *testing.T) {
	ctx := context.Background()
	cluster, q := minikubeTree()
	ns := child(t, cluster, "default")

	require.NoError(t, cluster.Eventlog(ctx, ".lastTimestamp"))
	call := q.lastCall()
	assert.Equal(t, "stream", call.op)
	assert.True(t, call.privileged)
	assert.Equal(t, []string{"get", "events", "--sort-by=.lastTimestamp", "-A"}, call.args)

	require.NoError(t, ns.Eventlog(ctx, ".metadata.creationTimestamp"))
	call = q.lastCall()
	assert.False(t, call.privileged)
	assert.Equal(t, "default", call.namespace)
	assert.Equal(t, []string{"get", "events", "--sort-by=.metadata.creationTimestamp"}, call.args)
}

func TestContainerActions(t *testing.T) {
	ctx := context.Background()
	cluster, q := minikubeTree()
	pod := child(t, child(t, cluster, "default"), "pod.failoid")
	container := child(t, pod, "http").(*Container)
	exec := q.state.execs["worker1"]
	require.NotNil(t, exec)

	t.Run("ps runs docker top on the host", func(t *testing.T) {
		require.NoError(t, container.Ps(ctx))
		assert.Equal(t, []string{"sudo", "docker", "top", "http-id"}, exec.streamed[len(exec.streamed)-1])
	})

	t.Run("tail streams the logs", func(t *testing.T) {
		require.NoError(t, container.Tail(ctx, false))
		call := q.lastCall()
		assert.False(t, call.privileged)
		assert.Equal(t, []string{"logs", "failoid", "http"}, call.args)

		require.NoError(t, container.Tail(ctx, true))
		assert.Equal(t, []string{"logs", "-f", "failoid", "http"}, q.lastCall().args)
	})

	t.Run("nsenter resolves the PID first", func(t *testing.T) {
		exec.captured["sudo docker inspect -f {{.State.Pid}} http-id"] = "4242\n"
		require.NoError(t, container.Nsenter(ctx, []string{"-n", "ss", "-tlpn"}))
		assert.Equal(t, []string{"sudo", "nsenter", "-t", "4242", "-n", "ss", "-tlpn"},
			exec.streamed[len(exec.streamed)-1])
	})

	t.Run("nsenter rejects garbage inspect output", func(t *testing.T) {
		exec.captured["sudo docker inspect -f {{.State.Pid}} http-id"] = "<no value>"
		err := container.Nsenter(ctx, []string{"ip", "addr"})
		assert.ErrorContains(t, err, "unparseable inspect output")
	})

	t.Run("exec goes through kubectl with the administrator profile", func(t *testing.T) {
		require.NoError(t, container.Exec(ctx, []string{"cat", "/etc/hostname"}))
		call := q.lastCall()
		assert.True(t, call.privileged)
		assert.Equal(t, []string{"exec", "failoid", "-c", "http", "--", "cat", "/etc/hostname"}, call.args)
	})

	t.Run("sudo runs docker exec as root", func(t *testing.T) {
		require.NoError(t, container.RootExec(ctx, []string{"id"}))
		assert.Equal(t, []string{"sudo", "docker", "exec", "--user", "root", "http-id", "id"},
			exec.streamed[len(exec.streamed)-1])
	})
}

func TestActionContextErrors(t *testing.T) {
	ctx := context.Background()
	cluster, _ := minikubeTree()
	ns := child(t, cluster, "default")

	assert.EqualError(t, ns.Ps(ctx), "ps cannot be used at namespace level")
	assert.EqualError(t, cluster.Tail(ctx, false), "tail cannot be used at cluster level")
	assert.EqualError(t, ns.Nsenter(ctx, nil), "nsenter cannot be used at namespace level")
	assert.EqualError(t, ns.Exec(ctx, nil), "exec cannot be used at namespace level")
	_, err := ns.Ports(ctx)
	assert.EqualError(t, err, "view cannot be used at namespace level")
}

func TestServicePorts(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuery("minikube", "admin")
	q.on("default", `{
		"apiVersion": "v1",
		"kind": "Service",
		"metadata": {"name": "pinkunicorn", "namespace": "default"},
		"spec": {"ports": [
			{"name": "http", "targetPort": 8080, "nodePort": 30080},
			{"name": "admin", "targetPort": "admin-port"}
		]}
	}`, "get", "services", "pinkunicorn")
	service := newService("pinkunicorn", q.WithNamespace("default"), nil)

	info, err := service.Ports(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default/services/pinkunicorn", info.Name)
	require.Len(t, info.Ports, 2)
	assert.Equal(t, "http", info.Ports[0].Name)
	assert.Equal(t, "8080", info.Ports[0].Target.String())
	assert.Equal(t, int64(30080), info.Ports[0].NodePort)
	assert.Equal(t, "admin-port", info.Ports[1].Target.String())
	assert.Zero(t, info.Ports[1].NodePort)
}

func TestServicePortsMalformed(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuery("minikube", "admin")
	q.on("default", `{
		"apiVersion": "v1",
		"kind": "Service",
		"metadata": {"name": "broken", "namespace": "default"},
		"spec": {"ports": [{"targetPort": 80}]}
	}`, "get", "services", "broken")
	service := newService("broken", q.WithNamespace("default"), nil)

	_, err := service.Ports(ctx)
	assert.EqualError(t, err, "service broken: port without a name")
}
