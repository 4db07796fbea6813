// Package store holds the shared view state of a dashboard session: the graph
// query params and the UI settings observed alongside them.
//
// The store is owned by the event loop. Every mutation commits first and then
// notifies subscribers with the committed snapshot. A mutation made by a
// subscriber while notifications are running is delivered in a following round,
// after every subscriber has seen the current one.
package store

import (
	"time"

	"meshgraph/internal/domain"
	"meshgraph/internal/tracker"
)

// Listener receives committed snapshots
type Listener func(tracker.Snapshot)

// Store is not safe for concurrent use; call it from the event loop only
type Store struct {
	state     tracker.Snapshot
	listeners map[int]Listener
	order     []int
	nextID    int
	notifying bool
	dirty     bool
}

// New creates a store holding initial
func New(initial tracker.Snapshot) *Store {
	initial.Params = initial.Params.Clone()
	return &Store{
		state:     initial,
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() tracker.Snapshot {
	snap := s.state
	snap.Params = snap.Params.Clone()
	return snap
}

// Params returns a copy of the current query params
func (s *Store) Params() domain.GraphQueryParams {
	return s.state.Params.Clone()
}

// View returns the current UI state
func (s *Store) View() domain.ViewState {
	return s.state.View
}

// Subscribe registers a listener and returns the function that removes it
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)

	return func() {
		if _, ok := s.listeners[id]; !ok {
			return
		}
		delete(s.listeners, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Update applies mutate as one commit, so several fields can change in a
// single observed transition
func (s *Store) Update(mutate func(*tracker.Snapshot)) {
	mutate(&s.state)
	s.dirty = true
	s.notify()
}

func (s *Store) notify() {
	if s.notifying {
		return
	}
	s.notifying = true
	defer func() { s.notifying = false }()

	for s.dirty {
		s.dirty = false
		snap := s.Snapshot()
		ids := append([]int(nil), s.order...)
		for _, id := range ids {
			if fn, ok := s.listeners[id]; ok {
				fn(snap)
			}
		}
	}
}

// SetFocusedNode replaces the focused node; nil clears the focus
func (s *Store) SetFocusedNode(node *domain.FocusedNode) {
	s.Update(func(st *tracker.Snapshot) { st.Params.FocusedNode = node })
}

// SetNamespaces replaces the active namespaces
func (s *Store) SetNamespaces(ns domain.NamespaceSet) {
	s.Update(func(st *tracker.Snapshot) { st.Params.Namespaces = domain.NewNamespaceSet(ns...) })
}

// SetDuration changes the queried window
func (s *Store) SetDuration(d time.Duration) {
	s.Update(func(st *tracker.Snapshot) { st.Params.Duration = d })
}

// SetGraphType changes the graph type
func (s *Store) SetGraphType(gt domain.GraphType) {
	s.Update(func(st *tracker.Snapshot) { st.Params.GraphType = gt })
}

// SetEdgeLabelMode changes the edge label mode
func (s *Store) SetEdgeLabelMode(mode domain.EdgeLabelMode) {
	s.Update(func(st *tracker.Snapshot) { st.Params.EdgeLabelMode = mode })
}

// SetShowServiceNodes toggles injected service nodes
func (s *Store) SetShowServiceNodes(show bool) {
	s.Update(func(st *tracker.Snapshot) { st.Params.ShowServiceNodes = show })
}

// SetShowSecurity toggles security badges
func (s *Store) SetShowSecurity(show bool) {
	s.Update(func(st *tracker.Snapshot) { st.Params.ShowSecurity = show })
}

// SetShowUnusedNodes toggles nodes without traffic
func (s *Store) SetShowUnusedNodes(show bool) {
	s.Update(func(st *tracker.Snapshot) { st.Params.ShowUnusedNodes = show })
}

// SetReplayQueryTime freezes the view at ms, or returns to live with 0
func (s *Store) SetReplayQueryTime(ms int64) {
	s.Update(func(st *tracker.Snapshot) { st.Params.ReplayQueryTime = ms })
}

// SetLastRefreshAt records a refresh tick
func (s *Store) SetLastRefreshAt(ms int64) {
	s.Update(func(st *tracker.Snapshot) { st.Params.LastRefreshAt = ms })
}

// SetLayout changes the layout algorithm
func (s *Store) SetLayout(layout domain.Layout) {
	s.Update(func(st *tracker.Snapshot) { st.View.Layout = layout })
}

// SetShowLegend shows or hides the legend panel
func (s *Store) SetShowLegend(show bool) {
	s.Update(func(st *tracker.Snapshot) { st.View.ShowLegend = show })
}

// StartTour marks a guided tour as active
func (s *Store) StartTour() {
	s.Update(func(st *tracker.Snapshot) { st.View.TourActive = true })
}

// EndTour ends the active guided tour
func (s *Store) EndTour() {
	s.Update(func(st *tracker.Snapshot) { st.View.TourActive = false })
}

// SetFocusSelector requests that the element matching selector be focused after the next render
func (s *Store) SetFocusSelector(selector string) {
	s.Update(func(st *tracker.Snapshot) { st.View.FocusSelector = selector })
}

// ConsumeFocusSelector clears the one-shot focus instruction
func (s *Store) ConsumeFocusSelector() {
	s.Update(func(st *tracker.Snapshot) { st.View.FocusSelector = "" })
}
