// Package selector derives the focused node from navigation input and defines
// when two focused nodes count as the same node.
package selector

import (
	"net/url"

	"meshgraph/internal/domain"
)

const (
	// Unknown is the sentinel the backend uses for unlabeled entities
	Unknown = "unknown"
	// undefinedLiteral shows up when a client stringifies a missing value
	undefinedLiteral = "undefined"
)

// RawParams holds the path fields of a navigation event. Any field may be
// empty, the Unknown sentinel, or the literal "undefined".
type RawParams struct {
	App       string
	Namespace string
	Service   string
	Version   string
	Workload  string
}

// RawParamsFromValues reads the fields from a query string
func RawParamsFromValues(v url.Values) RawParams {
	return RawParams{
		App:       v.Get("app"),
		Namespace: v.Get("namespace"),
		Service:   v.Get("service"),
		Version:   v.Get("version"),
		Workload:  v.Get("workload"),
	}
}

func present(s string) bool {
	return s != "" && s != Unknown && s != undefinedLiteral
}

// clean maps absent markers to the empty string
func clean(s string) string {
	if present(s) {
		return s
	}
	return ""
}

// DeriveFocusedNode builds the focused node described by raw, or nil when none
// of app, namespace, service or workload is present. Every call returns a new
// value.
func DeriveFocusedNode(raw RawParams) *domain.FocusedNode {
	appOk := present(raw.App)
	namespaceOk := present(raw.Namespace)
	serviceOk := present(raw.Service)
	workloadOk := present(raw.Workload)

	if !appOk && !namespaceOk && !serviceOk && !workloadOk {
		return nil
	}

	node := &domain.FocusedNode{
		App:       clean(raw.App),
		Namespace: clean(raw.Namespace),
		Service:   clean(raw.Service),
		Workload:  clean(raw.Workload),
	}

	if appOk || workloadOk {
		if appOk {
			node.Kind = domain.NodeKindApp
		} else {
			node.Kind = domain.NodeKindWorkload
		}
		node.Version = clean(raw.Version)
	} else {
		node.Kind = domain.NodeKindService
		node.Version = ""
	}

	return node
}

// NodeChanged reports whether current identifies a different node than previous.
//
// The same pointer is never a change; this fast path lets callers that hand the
// stored node back unmodified skip field comparison. Otherwise nil versus non-nil
// is a change, and two nodes differ iff app, service, version, kind or workload
// differ.
func NodeChanged(previous, current *domain.FocusedNode) bool {
	if previous == current {
		return false
	}
	if previous == nil || current == nil {
		return true
	}
	return previous.App != current.App ||
		previous.Service != current.Service ||
		previous.Version != current.Version ||
		previous.Kind != current.Kind ||
		previous.Workload != current.Workload
}
