package tracker

import "meshgraph/internal/domain"

// Snapshot is everything observed in one change-detection pass
type Snapshot struct {
	Params domain.GraphQueryParams
	View   domain.ViewState
}

// Diff is the comparison of two consecutive snapshots
type Diff struct {
	Previous Snapshot
	Current  Snapshot
	Triggers []Trigger
	// First is set on the first observation, when Previous is the zero value
	First bool
}

// ShouldRefetch returns true when any fetch trigger fired
func (d Diff) ShouldRefetch() bool {
	return len(d.Triggers) > 0
}

// Has returns true when trigger fired
func (d Diff) Has(trigger Trigger) bool {
	for _, t := range d.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

// NamespacesChanged compares the namespace sets regardless of other triggers
func (d Diff) NamespacesChanged() bool {
	return !d.Previous.Params.Namespaces.Equal(d.Current.Params.Namespaces)
}

// LayoutChanged returns true when the layout algorithm changed
func (d Diff) LayoutChanged() bool {
	return d.Previous.View.Layout != d.Current.View.Layout
}

// Tracker keeps the previous snapshot of a single owner. It is not safe for
// concurrent use; the owner serialises calls.
type Tracker struct {
	previous Snapshot
	seen     bool
}

// New creates a tracker primed with an initial snapshot
func New(initial Snapshot) *Tracker {
	return &Tracker{previous: cloneSnapshot(initial), seen: true}
}

// Observe compares current against the previous snapshot and makes current the
// new previous
func (t *Tracker) Observe(current Snapshot) Diff {
	current = cloneSnapshot(current)
	diff := Diff{
		Previous: t.previous,
		Current:  current,
		First:    !t.seen,
	}
	if t.seen {
		diff.Triggers = Changes(t.previous.Params, current.Params)
	}
	t.previous = current
	t.seen = true
	return diff
}

// Previous returns a copy of the last observed snapshot
func (t *Tracker) Previous() Snapshot {
	return cloneSnapshot(t.previous)
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Params = s.Params.Clone()
	return s
}
