package domain

import "time"

// GraphType selects how the backend aggregates telemetry into nodes
type GraphType string

const (
	GraphTypeApp          GraphType = "app"
	GraphTypeService      GraphType = "service"
	GraphTypeVersionedApp GraphType = "versionedApp"
	GraphTypeWorkload     GraphType = "workload"
)

// ParseGraphType converts a string to GraphType, defaulting to GraphTypeVersionedApp
func ParseGraphType(s string) GraphType {
	switch s {
	case "app":
		return GraphTypeApp
	case "service":
		return GraphTypeService
	case "versionedApp":
		return GraphTypeVersionedApp
	case "workload":
		return GraphTypeWorkload
	default:
		return GraphTypeVersionedApp
	}
}

// EdgeLabelMode selects which metric is rendered on edges
type EdgeLabelMode string

const (
	EdgeLabelNone                EdgeLabelMode = "noLabel"
	EdgeLabelRequestRate         EdgeLabelMode = "requestRate"
	EdgeLabelRequestDistribution EdgeLabelMode = "requestDistribution"
	EdgeLabelThroughput          EdgeLabelMode = "throughput"
	// EdgeLabelResponseTime95 needs extra aggregation on the backend
	EdgeLabelResponseTime95 EdgeLabelMode = "responseTime95thPercentile"
)

// ParseEdgeLabelMode converts a string to EdgeLabelMode, defaulting to EdgeLabelNone
func ParseEdgeLabelMode(s string) EdgeLabelMode {
	switch s {
	case "requestRate":
		return EdgeLabelRequestRate
	case "requestDistribution":
		return EdgeLabelRequestDistribution
	case "throughput":
		return EdgeLabelThroughput
	case "responseTime95thPercentile":
		return EdgeLabelResponseTime95
	default:
		return EdgeLabelNone
	}
}

// Layout is the layout algorithm the renderer applies
type Layout string

const (
	LayoutDagre       Layout = "dagre"
	LayoutCoseBilkent Layout = "cose-bilkent"
	LayoutCola        Layout = "cola"
)

// ParseLayout converts a string to Layout, defaulting to LayoutDagre
func ParseLayout(s string) Layout {
	switch s {
	case "cose-bilkent":
		return LayoutCoseBilkent
	case "cola":
		return LayoutCola
	default:
		return LayoutDagre
	}
}

// GraphQueryParams is the snapshot of every input that decides what graph data
// has to be fetched. Times are unix milliseconds; ReplayQueryTime is 0 when the
// view is live.
type GraphQueryParams struct {
	Namespaces       NamespaceSet
	Duration         time.Duration
	GraphType        GraphType
	EdgeLabelMode    EdgeLabelMode
	ShowServiceNodes bool
	ShowSecurity     bool
	ShowUnusedNodes  bool
	FocusedNode      *FocusedNode
	ReplayQueryTime  int64
	LastRefreshAt    int64
}

// DefaultGraphQueryParams returns the params of a fresh session
func DefaultGraphQueryParams() GraphQueryParams {
	return GraphQueryParams{
		Namespaces:       NamespaceSet{},
		Duration:         time.Minute,
		GraphType:        GraphTypeVersionedApp,
		EdgeLabelMode:    EdgeLabelNone,
		ShowServiceNodes: true,
	}
}

// Clone copies the params as they are; normalisation belongs to the
// constructors and setters. The focused node pointer is shared on purpose:
// its identity is part of change detection.
func (p GraphQueryParams) Clone() GraphQueryParams {
	c := p
	c.Namespaces = append(NamespaceSet{}, p.Namespaces...)
	return c
}

// IsReplay returns true when the view is frozen at an explicit instant
func (p GraphQueryParams) IsReplay() bool {
	return p.ReplayQueryTime > 0
}

// ViewState holds the UI settings that are observed with the same
// previous/current comparison as the query params but never cause a fetch
type ViewState struct {
	Layout     Layout
	ShowLegend bool
	TourActive bool
	// FocusSelector is a one-shot instruction to highlight an element after the
	// next render. Empty when there is nothing to focus.
	FocusSelector string
}

// DefaultViewState returns the UI state of a fresh session
func DefaultViewState() ViewState {
	return ViewState{Layout: LayoutDagre}
}
