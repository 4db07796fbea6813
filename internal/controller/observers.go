package controller

import (
	"meshgraph/internal/tracker"
)

// Observer reacts to one snapshot diff. Observers are independent of each
// other and of the refetch decision.
type Observer interface {
	Observe(diff tracker.Diff)
}

// DefaultObservers returns the error, tour and focus observers. onFocus may be nil.
func DefaultObservers(s Store, boundary *RenderBoundary, onFocus func(selector string)) []Observer {
	return []Observer{
		&ErrorResetter{Boundary: boundary},
		&TourEnder{Tours: s},
		&FocusConsumer{Focus: s, OnFocus: onFocus},
	}
}

// ErrorResetter clears the render error when the namespace set or the layout changes
type ErrorResetter struct {
	Boundary *RenderBoundary
}

func (o *ErrorResetter) Observe(diff tracker.Diff) {
	if diff.First {
		return
	}
	if diff.NamespacesChanged() || diff.LayoutChanged() {
		o.Boundary.Reset()
	}
}

// TourEnder ends the guided tour once the legend is shown during it
type TourEnder struct {
	Tours interface{ EndTour() }
}

func (o *TourEnder) Observe(diff tracker.Diff) {
	view := diff.Current.View
	if view.ShowLegend && view.TourActive {
		o.Tours.EndTour()
	}
}

// FocusConsumer hands a one-shot focus selector to OnFocus and clears it
type FocusConsumer struct {
	Focus   interface{ ConsumeFocusSelector() }
	OnFocus func(selector string)

	used string
}

func (o *FocusConsumer) Observe(diff tracker.Diff) {
	sel := diff.Current.View.FocusSelector
	if sel == "" {
		o.used = ""
		return
	}
	// the clearing update has not been observed yet
	if sel == o.used {
		return
	}
	o.used = sel
	if o.OnFocus != nil {
		o.OnFocus(sel)
	}
	o.Focus.ConsumeFocusSelector()
}
