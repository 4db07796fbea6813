// Package controller decides when the graph is fetched again.
//
// A RefreshController observes every committed store snapshot, compares it to
// the previous one and submits at most one fetch at a time to the data source.
// All of its methods, and every callback it registers, run on the event loop.
package controller

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"meshgraph/internal/datasource"
	"meshgraph/internal/domain"
	"meshgraph/internal/metrics"
	"meshgraph/internal/selector"
	"meshgraph/internal/store"
	"meshgraph/internal/tracker"
)

// State of the fetch state machine
type State int

const (
	Idle State = iota
	FetchInFlight
	FetchFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchInFlight:
		return "fetchInFlight"
	case FetchFailed:
		return "fetchFailed"
	default:
		return "unknown"
	}
}

// Store is the shared application state as seen by the controller
type Store interface {
	Snapshot() tracker.Snapshot
	Subscribe(fn store.Listener) (unsubscribe func())
	SetFocusedNode(node *domain.FocusedNode)
	EndTour()
	ConsumeFocusSelector()
}

// Status is the controller state exposed to clients
type Status struct {
	State       string `json:"state"`
	Failure     string `json:"failure,omitempty"`
	Pending     bool   `json:"pending"`
	Ready       bool   `json:"ready"`
	TimeRange   string `json:"timeRange,omitempty"`
	Updated     string `json:"updated,omitempty"`
	RenderError string `json:"renderError,omitempty"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Request     string `json:"request,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// Options configures a RefreshController
type Options struct {
	Store  Store
	Source datasource.Source
	// Initial is the snapshot the first observed change is compared against
	Initial tracker.Snapshot
	// Boundary is created when nil
	Boundary *RenderBoundary
	// Observers default to DefaultObservers
	Observers []Observer
	// OnChange is called after every state transition and data source event
	OnChange func(Status)
	Metrics  *metrics.Metrics
	Log      *logrus.Entry
	Now      func() time.Time
}

// RefreshController drives the data source from store changes
type RefreshController struct {
	store     Store
	source    datasource.Source
	boundary  *RenderBoundary
	observers []Observer
	onChange  func(Status)
	metrics   *metrics.Metrics
	log       *logrus.Entry
	now       func() time.Time

	tracker *tracker.Tracker
	state   State
	failure string
	// pending is set when a trigger arrives during a fetch; it folds any number
	// of triggers into one follow-up
	pending  bool
	inflight *domain.FetchRequest

	started           bool
	closed            bool
	awaitingBootstrap bool
	subs              []datasource.Subscription
	unsubscribeStore  func()
}

// New creates a controller. Nothing is observed or fetched before Start.
func New(opts Options) *RefreshController {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	boundary := opts.Boundary
	if boundary == nil {
		boundary = NewRenderBoundary(opts.Metrics, log)
	}

	c := &RefreshController{
		store:    opts.Store,
		source:   opts.Source,
		boundary: boundary,
		onChange: opts.OnChange,
		metrics:  opts.Metrics,
		log:      log.WithField("component", "controller"),
		now:      now,
		tracker:  tracker.New(opts.Initial),
	}
	c.observers = opts.Observers
	if c.observers == nil {
		c.observers = DefaultObservers(opts.Store, boundary, nil)
	}
	for _, t := range tracker.AllTriggers {
		c.metrics.InitTriggers(string(t))
	}
	return c
}

// Start subscribes to the store and the data source and runs the initial
// fetch. When urlNode differs from the stored node, including a nil urlNode
// against a stored one, the store is corrected first and the initial fetch
// waits for that update to be observed.
func (c *RefreshController) Start(urlNode *domain.FocusedNode) {
	if c.started {
		return
	}
	c.started = true

	for _, kind := range datasource.EventKinds {
		c.subs = append(c.subs, c.source.Subscribe(kind, c.handleEvent))
	}
	c.unsubscribeStore = c.store.Subscribe(c.observe)

	stored := c.store.Snapshot().Params.FocusedNode
	if selector.NodeChanged(stored, urlNode) {
		c.log.WithFields(logrus.Fields{"url": urlNode, "stored": stored}).Debug("correcting stored node before initial fetch")
		c.awaitingBootstrap = true
		c.store.SetFocusedNode(urlNode)
		return
	}

	c.submit(c.store.Snapshot().Params, "initial")
}

// observe is the store listener; one call per committed snapshot
func (c *RefreshController) observe(snap tracker.Snapshot) {
	if c.closed {
		return
	}
	diff := c.tracker.Observe(snap)

	for _, o := range c.observers {
		o.Observe(diff)
	}

	if c.awaitingBootstrap {
		c.awaitingBootstrap = false
		c.request(snap.Params, "initial")
		return
	}

	if !diff.ShouldRefetch() {
		return
	}
	for _, t := range diff.Triggers {
		c.metrics.Trigger(string(t))
	}
	c.request(snap.Params, triggerNames(diff.Triggers))
}

// request submits a fetch, or marks the follow-up when one is in flight
func (c *RefreshController) request(params domain.GraphQueryParams, reason string) {
	if c.state == FetchInFlight {
		if !c.pending {
			c.log.WithField("reason", reason).Debug("fetch in flight, queueing follow-up")
		}
		c.pending = true
		c.metrics.Coalesced()
		c.notify()
		return
	}
	c.submit(params, reason)
}

func (c *RefreshController) submit(params domain.GraphQueryParams, reason string) {
	req := domain.NewFetchRequest(params)
	c.inflight = &req
	c.state = FetchInFlight
	c.failure = ""

	c.log.WithFields(logrus.Fields{
		"request": req.ID,
		"scope":   req.Scope(),
		"reason":  reason,
	}).Info("fetching graph")
	c.metrics.Submitted()

	c.source.FetchGraphData(req)
	c.notify()
}

func (c *RefreshController) handleEvent(e datasource.Event) {
	if c.closed {
		return
	}

	switch e.Kind {
	case datasource.EventLoadStart:
		c.notify()
		return
	case datasource.EventFetchSuccess, datasource.EventEmptyNamespaces:
		if !c.owns(e.Request) {
			c.notify()
			return
		}
		c.state = Idle
		c.failure = ""
	case datasource.EventFetchError:
		if !c.owns(e.Request) {
			c.notify()
			return
		}
		c.state = FetchFailed
		c.failure = c.source.ErrorMessage()
		if c.failure == "" && e.Err != nil {
			c.failure = e.Err.Error()
		}
		c.log.WithField("request", e.Request.ID).WithError(e.Err).Warn("graph fetch failed, keeping last graph")
	}
	c.inflight = nil

	if c.pending {
		c.pending = false
		c.submit(c.store.Snapshot().Params, "follow-up")
		return
	}
	c.notify()
}

// owns matches by key since the source folds identical requests into one
func (c *RefreshController) owns(req domain.FetchRequest) bool {
	return c.inflight != nil && c.inflight.Key() == req.Key()
}

// Retry clears a render error and fetches again from the current snapshot
func (c *RefreshController) Retry() {
	c.boundary.Reset()
	c.request(c.store.Snapshot().Params, "retry")
}

// Render runs fn behind the render boundary
func (c *RefreshController) Render(fn func() error) error {
	err := c.boundary.Render(c.store.Snapshot().View.Layout, fn)
	if err != nil {
		c.notify()
	}
	return err
}

// State returns the current state
func (c *RefreshController) State() State {
	return c.state
}

// Ready returns true when the data source holds nodes and no error
func (c *RefreshController) Ready() bool {
	return c.source.GraphData().HasNodes() && !c.source.IsError()
}

// TimeRange returns the queried window of the last successful fetch, ending at
// its query timestamp and spanning the active duration
func (c *RefreshController) TimeRange() string {
	data := c.source.GraphData()
	if data == nil || data.Timestamp == 0 {
		return ""
	}
	end := time.UnixMilli(data.Timestamp)
	start := end.Add(-c.store.Snapshot().Params.Duration)
	return domain.RangeString(start, end)
}

// Status aggregates the state for clients
func (c *RefreshController) Status() Status {
	st := Status{
		State:     c.state.String(),
		Failure:   c.failure,
		Pending:   c.pending,
		Ready:     c.Ready(),
		TimeRange: c.TimeRange(),
	}
	if data := c.source.GraphData(); data != nil {
		st.Nodes = len(data.Nodes)
		st.Edges = len(data.Edges)
		if data.Timestamp > 0 {
			st.Updated = humanize.RelTime(time.UnixMilli(data.Timestamp), c.now(), "ago", "from now")
		}
	}
	if rerr := c.boundary.Err(); rerr != nil {
		st.RenderError = rerr.Error()
	}
	if c.inflight != nil {
		st.Request = c.inflight.ID
		st.Scope = c.inflight.Scope()
	}
	return st
}

// Close removes every subscription. The in-flight fetch, if any, completes
// unobserved.
func (c *RefreshController) Close() {
	if c.closed {
		return
	}
	c.closed = true
	for _, sub := range c.subs {
		c.source.Unsubscribe(sub)
	}
	c.subs = nil
	if c.unsubscribeStore != nil {
		c.unsubscribeStore()
		c.unsubscribeStore = nil
	}
}

func (c *RefreshController) notify() {
	if c.onChange != nil {
		c.onChange(c.Status())
	}
}

func triggerNames(triggers []tracker.Trigger) string {
	names := make([]string, len(triggers))
	for i, t := range triggers {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}
