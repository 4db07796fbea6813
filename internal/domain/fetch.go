package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FetchRequest is submitted to the graph data source. It is built fresh for
// every triggered fetch and not retained after submission.
type FetchRequest struct {
	ID            string
	Namespaces    NamespaceSet
	Node          *FocusedNode
	Duration      time.Duration
	GraphType     GraphType
	EdgeLabelMode EdgeLabelMode

	InjectServiceNodes bool
	ShowSecurity       bool
	ShowUnusedNodes    bool

	// QueryTime is the replay instant in unix milliseconds, 0 for "now"
	QueryTime int64
}

// NewFetchRequest builds the request for a snapshot. A focused node narrows
// the scope to the node's own namespace regardless of the active namespaces.
func NewFetchRequest(p GraphQueryParams) FetchRequest {
	namespaces := NewNamespaceSet(p.Namespaces...)
	if p.FocusedNode != nil {
		namespaces = NewNamespaceSet(p.FocusedNode.Namespace)
	}

	req := FetchRequest{
		ID:                 uuid.New().String(),
		Namespaces:         namespaces,
		Node:               p.FocusedNode.Clone(),
		Duration:           p.Duration,
		GraphType:          p.GraphType,
		EdgeLabelMode:      p.EdgeLabelMode,
		InjectServiceNodes: p.ShowServiceNodes,
		ShowSecurity:       p.ShowSecurity,
		ShowUnusedNodes:    p.ShowUnusedNodes,
	}
	if p.ReplayQueryTime > 0 {
		req.QueryTime = p.ReplayQueryTime
	}
	return req
}

// HasScope returns false when there is nothing to query
func (r FetchRequest) HasScope() bool {
	return !r.Namespaces.Empty()
}

// Scope describes what the request covers, for logs and history
func (r FetchRequest) Scope() string {
	if r.Node != nil {
		return r.Node.String()
	}
	return r.Namespaces.String()
}

// Key identifies requests that would return the same data. The ID is not part of it.
// Namespaces are keyed in request order; callers that need set semantics should
// build both requests from NewFetchRequest.
func (r FetchRequest) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%t|%t|%t|%d",
		r.Namespaces, r.Node, int64(r.Duration/time.Second), r.GraphType, r.EdgeLabelMode,
		r.InjectServiceNodes, r.ShowSecurity, r.ShowUnusedNodes, r.QueryTime)
}
