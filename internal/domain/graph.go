package domain

import "time"

// GraphNode is a topology node as returned by the mesh backend
type GraphNode struct {
	ID        string `json:"id" yaml:"id"`
	NodeType  string `json:"nodeType" yaml:"nodeType"`
	Namespace string `json:"namespace" yaml:"namespace"`
	App       string `json:"app,omitempty" yaml:"app,omitempty"`
	Workload  string `json:"workload,omitempty" yaml:"workload,omitempty"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	IsRoot    bool   `json:"isRoot,omitempty" yaml:"isRoot,omitempty"`
	IsUnused  bool   `json:"isUnused,omitempty" yaml:"isUnused,omitempty"`
}

// GraphEdge is a directed traffic edge between two nodes
type GraphEdge struct {
	ID           string            `json:"id" yaml:"id"`
	Source       string            `json:"source" yaml:"source"`
	Target       string            `json:"target" yaml:"target"`
	ResponseTime string            `json:"responseTime,omitempty" yaml:"responseTime,omitempty"`
	IsMTLS       string            `json:"isMTLS,omitempty" yaml:"isMTLS,omitempty"`
	Traffic      map[string]string `json:"traffic,omitempty" yaml:"traffic,omitempty"`
}

// GraphData is the result of a fetch. Timestamp is the backend query time in
// unix milliseconds; Duration is the queried window.
type GraphData struct {
	Nodes     []GraphNode   `json:"nodes" yaml:"nodes"`
	Edges     []GraphEdge   `json:"edges" yaml:"edges"`
	Timestamp int64         `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"-" yaml:"-"`
	GraphType GraphType     `json:"graphType" yaml:"graphType"`

	// ErrorMessage is set when the last fetch failed; the nodes and edges are
	// then those of the last successful fetch
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// NewGraphData creates empty graph data
func NewGraphData() *GraphData {
	return &GraphData{
		Nodes: make([]GraphNode, 0),
		Edges: make([]GraphEdge, 0),
	}
}

// HasNodes returns true when the data holds at least one node
func (g *GraphData) HasNodes() bool {
	return g != nil && len(g.Nodes) > 0
}

// Window returns the queried time window [start, end]
func (g *GraphData) Window() (time.Time, time.Time) {
	end := time.UnixMilli(g.Timestamp)
	return end.Add(-g.Duration), end
}
