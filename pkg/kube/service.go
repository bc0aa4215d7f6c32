// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// ServiceInfo is the parsed view of a service, as shown by view.
type ServiceInfo struct {
	Name  string        `json:"name"`
	Ports []ServicePort `json:"ports"`
}

// ServicePort is one exposed port of a service. NodePort is zero when the
// service does not expose one.
type ServicePort struct {
	Name     string             `json:"name"`
	Target   intstr.IntOrString `json:"target"`
	NodePort int64              `json:"nodeport,omitempty"`
}

// Service is a service within a namespace. It is a leaf for navigation
// purposes; its port data is fetched on demand by Ports.
type Service struct {
	base
}

func newService(name string, query Query, parent Object) *Service {
	return &Service{base: base{name: name, kind: KindService, query: query, parent: parent}}
}

func (s *Service) PathFragment() string { return "service." + s.name }

// Children never queries: services are leaves.
func (s *Service) Children(ctx context.Context) ([]Object, error) {
	return []Object{}, nil
}

// Refresh is a noop: services cache nothing.
func (s *Service) Refresh() {}

func (s *Service) Delete(ctx context.Context) error {
	return s.deleteAs(ctx, s)
}

// Ports fetches the service and parses its port list.
func (s *Service) Ports(ctx context.Context) (*ServiceInfo, error) {
	u, err := s.query.JSON(ctx, false, "get", "services", s.name)
	if err != nil {
		return nil, err
	}
	namespace, _, _ := unstructured.NestedString(u.Object, "metadata", "namespace")
	name, found, _ := unstructured.NestedString(u.Object, "metadata", "name")
	if !found {
		return nil, fmt.Errorf("service %s: missing metadata", s.name)
	}
	rawPorts, found, err := unstructured.NestedSlice(u.Object, "spec", "ports")
	if err != nil || !found {
		return nil, fmt.Errorf("service %s: missing port list", s.name)
	}

	info := &ServiceInfo{Name: fmt.Sprintf("%s/services/%s", namespace, name)}
	for _, raw := range rawPorts {
		port, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("service %s: malformed port entry", s.name)
		}
		parsed := ServicePort{}
		if parsed.Name, ok = port["name"].(string); !ok {
			return nil, fmt.Errorf("service %s: port without a name", s.name)
		}
		switch target := port["targetPort"].(type) {
		case string:
			parsed.Target = intstr.FromString(target)
		case int64:
			parsed.Target = intstr.FromInt32(int32(target))
		case float64:
			parsed.Target = intstr.FromInt32(int32(target))
		default:
			return nil, fmt.Errorf("service %s: port %s has no target", s.name, parsed.Name)
		}
		// nodePort is optional.
		switch nodePort := port["nodePort"].(type) {
		case int64:
			parsed.NodePort = nodePort
		case float64:
			parsed.NodePort = int64(nodePort)
		}
		info.Ports = append(info.Ports, parsed)
	}
	return info, nil
}
