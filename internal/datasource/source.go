// Package datasource runs graph fetches against the mesh backend and reports
// their lifecycle as events.
//
// A GraphDataSource is owned by the event loop: FetchGraphData, Subscribe and
// the accessors must be called from the loop, and every handler runs there.
// The network call itself happens on its own goroutine and its result is handed
// back to the loop.
package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"meshgraph/internal/domain"
	"meshgraph/internal/loop"
	"meshgraph/internal/metrics"
	"meshgraph/internal/repository"
)

// Fetcher performs one backend query
type Fetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.GraphData, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, req domain.FetchRequest) (*domain.GraphData, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.GraphData, error) {
	return f(ctx, req)
}

// Source is the data source as driven and observed by the refresh controller
type Source interface {
	// FetchGraphData submits a request and returns at once; the outcome is
	// reported through events
	FetchGraphData(req domain.FetchRequest)
	Subscribe(kind EventKind, h Handler) Subscription
	Unsubscribe(sub Subscription)

	// GraphData returns the current result. After a failed fetch it holds the
	// last good nodes with ErrorMessage set.
	GraphData() *domain.GraphData
	IsLoading() bool
	IsError() bool
	ErrorMessage() string
}

// Options configures a GraphDataSource
type Options struct {
	Fetcher    Fetcher
	Dispatcher loop.Dispatcher
	// History is optional
	History repository.FetchRecorder
	// Metrics is optional
	Metrics *metrics.Metrics
	Log     *logrus.Entry
}

// GraphDataSource is the Source backed by a Fetcher
type GraphDataSource struct {
	fetcher  Fetcher
	dispatch loop.Dispatcher
	history  repository.FetchRecorder
	metrics  *metrics.Metrics
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	bus      *Registry
	inflight map[string]string
	data     *domain.GraphData
	errMsg   string
}

var _ Source = (*GraphDataSource)(nil)

// New creates a data source
func New(opts Options) *GraphDataSource {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &GraphDataSource{
		fetcher:  opts.Fetcher,
		dispatch: opts.Dispatcher,
		history:  opts.History,
		metrics:  opts.Metrics,
		log:      log.WithField("component", "datasource"),
		ctx:      ctx,
		cancel:   cancel,
		bus:      NewRegistry(),
		inflight: make(map[string]string),
		data:     domain.NewGraphData(),
	}
}

// Subscribe registers h for events of kind
func (s *GraphDataSource) Subscribe(kind EventKind, h Handler) Subscription {
	return s.bus.Subscribe(kind, h)
}

// Unsubscribe removes a handler. Unknown or already removed subscriptions are ignored.
func (s *GraphDataSource) Unsubscribe(sub Subscription) {
	s.bus.Unsubscribe(sub)
}

// Subscribers returns the number of registered handlers
func (s *GraphDataSource) Subscribers() int {
	return s.bus.Len()
}

// FetchGraphData starts a fetch unless an identical one is already in flight.
// A request without namespaces has nothing to query and only emits
// emptyNamespaces.
func (s *GraphDataSource) FetchGraphData(req domain.FetchRequest) {
	log := s.log.WithFields(logrus.Fields{"request": req.ID, "scope": req.Scope()})

	if !req.HasScope() {
		log.Debug("no namespaces selected")
		s.data = domain.NewGraphData()
		s.errMsg = ""
		s.recordAsync(req, time.Now(), 0, repository.OutcomeEmpty, nil, nil)
		s.emit(Event{Kind: EventEmptyNamespaces, Request: req})
		return
	}

	key := req.Key()
	if id, ok := s.inflight[key]; ok {
		log.WithField("inflight", id).Debug("identical fetch already in flight")
		s.metrics.Deduplicated()
		return
	}
	s.inflight[key] = req.ID

	log.Debug("fetch started")
	s.emit(Event{Kind: EventLoadStart, Request: req})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		started := time.Now()
		data, err := s.fetcher.Fetch(s.ctx, req)
		elapsed := time.Since(started)

		outcome := repository.OutcomeSuccess
		if err != nil {
			outcome = repository.OutcomeError
		}
		s.metrics.FetchDone(string(outcome), elapsed)
		s.record(req, started, elapsed, outcome, data, err)

		if !s.dispatch.Post(func() { s.complete(req, key, data, err) }) {
			log.Debug("event loop stopped, dropping fetch result")
		}
	}()
}

// complete runs on the loop. A stale result is applied as it is; the caller
// issues a corrective fetch if its inputs moved on meanwhile.
func (s *GraphDataSource) complete(req domain.FetchRequest, key string, data *domain.GraphData, err error) {
	delete(s.inflight, key)
	log := s.log.WithFields(logrus.Fields{"request": req.ID, "scope": req.Scope()})

	if err != nil {
		log.WithError(err).Warn("graph fetch failed")
		s.errMsg = err.Error()

		kept := *s.data
		kept.ErrorMessage = s.errMsg
		s.data = &kept

		s.bus.Publish(Event{Kind: EventFetchError, Request: req, Err: err})
		return
	}

	if data == nil {
		data = domain.NewGraphData()
	}
	if data.Duration == 0 {
		data.Duration = req.Duration
	}
	data.ErrorMessage = ""

	s.data = data
	s.errMsg = ""
	log.WithFields(logrus.Fields{"nodes": len(data.Nodes), "edges": len(data.Edges)}).Debug("graph fetched")

	s.bus.Publish(Event{Kind: EventFetchSuccess, Request: req, Data: data})
}

// emit hands an event to the loop so that handlers never run inside the call
// that caused it
func (s *GraphDataSource) emit(event Event) {
	if !s.dispatch.Post(func() { s.bus.Publish(event) }) {
		s.log.WithField("event", event.Kind).Debug("event loop stopped, dropping event")
	}
}

// GraphData returns the current result
func (s *GraphDataSource) GraphData() *domain.GraphData {
	return s.data
}

// IsLoading returns true while any fetch is in flight
func (s *GraphDataSource) IsLoading() bool {
	return len(s.inflight) > 0
}

// IsError returns true when the latest completed fetch failed
func (s *GraphDataSource) IsError() bool {
	return s.errMsg != ""
}

// ErrorMessage returns the error of the latest completed fetch
func (s *GraphDataSource) ErrorMessage() string {
	return s.errMsg
}

// Close cancels in-flight fetches and waits for their goroutines. Results
// arriving afterwards are dropped by the stopped loop or applied as failures.
func (s *GraphDataSource) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *GraphDataSource) recordAsync(req domain.FetchRequest, started time.Time, elapsed time.Duration, outcome repository.Outcome, data *domain.GraphData, err error) {
	if s.history == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.record(req, started, elapsed, outcome, data, err)
	}()
}

func (s *GraphDataSource) record(req domain.FetchRequest, started time.Time, elapsed time.Duration, outcome repository.Outcome, data *domain.GraphData, err error) {
	if s.history == nil {
		return
	}

	rec := repository.FetchRecord{
		ID:            req.ID,
		Scope:         req.Scope(),
		Namespaces:    req.Namespaces.Names(),
		GraphType:     string(req.GraphType),
		EdgeLabelMode: string(req.EdgeLabelMode),
		QueryTime:     req.QueryTime,
		StartedAt:     started,
		Elapsed:       elapsed,
		Outcome:       outcome,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if data != nil {
		rec.Nodes = len(data.Nodes)
		rec.Edges = len(data.Edges)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.Record(ctx, rec); err != nil {
		s.log.WithError(err).WithField("request", req.ID).Warn("failed to record fetch")
	}
}
