// Package tracker decides whether a change between two consecutive query
// snapshots requires fetching graph data again.
//
// ShouldRefetch and Changes are pure: they perform no I/O and never mutate
// their arguments. Tracker is the stateful holder of the previous snapshot for
// a single owner.
package tracker

import (
	"meshgraph/internal/domain"
	"meshgraph/internal/selector"
)

// Trigger names a rule that makes a snapshot change fetch-relevant
type Trigger string

const (
	TriggerNamespaces       Trigger = "namespaces"
	TriggerDuration         Trigger = "duration"
	TriggerEdgeLabelMode    Trigger = "edge_label_mode"
	TriggerGraphType        Trigger = "graph_type"
	TriggerRefreshTick      Trigger = "refresh_tick"
	TriggerReplayQueryTime  Trigger = "replay_query_time"
	TriggerShowServiceNodes Trigger = "show_service_nodes"
	TriggerShowSecurity     Trigger = "show_security"
	TriggerShowUnusedNodes  Trigger = "show_unused_nodes"
	TriggerFocusedNode      Trigger = "focused_node"
)

// AllTriggers lists every trigger in evaluation order
var AllTriggers = []Trigger{
	TriggerNamespaces,
	TriggerDuration,
	TriggerEdgeLabelMode,
	TriggerGraphType,
	TriggerRefreshTick,
	TriggerReplayQueryTime,
	TriggerShowServiceNodes,
	TriggerShowSecurity,
	TriggerShowUnusedNodes,
	TriggerFocusedNode,
}

// Changes evaluates every rule and returns the triggers that fired, in
// AllTriggers order. An empty result means no fetch is needed.
func Changes(previous, current domain.GraphQueryParams) []Trigger {
	var fired []Trigger

	if !previous.Namespaces.Equal(current.Namespaces) {
		fired = append(fired, TriggerNamespaces)
	}
	if previous.Duration != current.Duration {
		fired = append(fired, TriggerDuration)
	}
	// Leaving the percentile mode, or moving between other modes, can be
	// rendered from data already fetched.
	if previous.EdgeLabelMode != current.EdgeLabelMode && current.EdgeLabelMode == domain.EdgeLabelResponseTime95 {
		fired = append(fired, TriggerEdgeLabelMode)
	}
	if previous.GraphType != current.GraphType {
		fired = append(fired, TriggerGraphType)
	}
	// Replay freezes the window; only an explicit replay time change moves it.
	if previous.LastRefreshAt != current.LastRefreshAt && current.ReplayQueryTime == 0 {
		fired = append(fired, TriggerRefreshTick)
	}
	if previous.ReplayQueryTime != current.ReplayQueryTime {
		fired = append(fired, TriggerReplayQueryTime)
	}
	if previous.ShowServiceNodes != current.ShowServiceNodes {
		fired = append(fired, TriggerShowServiceNodes)
	}
	if previous.ShowSecurity != current.ShowSecurity {
		fired = append(fired, TriggerShowSecurity)
	}
	if previous.ShowUnusedNodes != current.ShowUnusedNodes {
		fired = append(fired, TriggerShowUnusedNodes)
	}
	if selector.NodeChanged(previous.FocusedNode, current.FocusedNode) {
		fired = append(fired, TriggerFocusedNode)
	}

	return fired
}

// ShouldRefetch reports whether moving from previous to current requires new graph data
func ShouldRefetch(previous, current domain.GraphQueryParams) bool {
	return len(Changes(previous, current)) > 0
}
