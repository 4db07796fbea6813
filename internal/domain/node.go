package domain

import "fmt"

// NodeKind represents what kind of topology entity a focused node is
type NodeKind string

const (
	NodeKindApp      NodeKind = "app"
	NodeKindWorkload NodeKind = "workload"
	NodeKindService  NodeKind = "service"
)

// FocusedNode identifies the topology entity the graph is narrowed to.
// A value is either absent (nil pointer) or populated for its Kind: app nodes
// carry App, workload nodes carry Workload, service nodes carry Service.
type FocusedNode struct {
	App       string   `json:"app,omitempty"`
	Namespace string   `json:"namespace"`
	Kind      NodeKind `json:"nodeType"`
	Service   string   `json:"service,omitempty"`
	Version   string   `json:"version,omitempty"`
	Workload  string   `json:"workload,omitempty"`
}

// Name returns the identifying name for the node's kind
func (n *FocusedNode) Name() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case NodeKindApp:
		return n.App
	case NodeKindWorkload:
		return n.Workload
	case NodeKindService:
		return n.Service
	default:
		return ""
	}
}

// String renders the node as namespace/kind/name[:version]
func (n *FocusedNode) String() string {
	if n == nil {
		return "<none>"
	}
	s := fmt.Sprintf("%s/%s/%s", n.Namespace, n.Kind, n.Name())
	if n.Version != "" {
		s += ":" + n.Version
	}
	return s
}

// Clone returns a structurally equal copy at a new address
func (n *FocusedNode) Clone() *FocusedNode {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
