package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"meshgraph/internal/controller"
	"meshgraph/internal/domain"
	"meshgraph/internal/loop"
	"meshgraph/internal/repository"
	"meshgraph/internal/tracker"
)

// Runner executes a function on the event loop and waits for it
type Runner interface {
	Do(ctx context.Context, task func()) error
}

// ViewStore is the part of the store the handlers write
type ViewStore interface {
	Snapshot() tracker.Snapshot
	Update(mutate func(*tracker.Snapshot))
	SetFocusedNode(node *domain.FocusedNode)
}

// Controller is the part of the refresh controller the handlers use
type Controller interface {
	Status() controller.Status
	Retry()
	Render(fn func() error) error
}

// GraphSource exposes the current graph data
type GraphSource interface {
	GraphData() *domain.GraphData
}

// HistoryLister lists recorded fetches
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]repository.FetchRecord, error)
}

// Deps are the collaborators of a Handler
type Deps struct {
	Loop       Runner
	Store      ViewStore
	Controller Controller
	Source     GraphSource
	// History is optional
	History HistoryLister
	Log     *logrus.Entry
	Now     func() time.Time
}

// Handler serves the graph and view API
type Handler struct {
	loop    Runner
	store   ViewStore
	ctrl    Controller
	source  GraphSource
	history HistoryLister
	log     *logrus.Entry
	now     func() time.Time
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// New creates a handler
func New(deps Deps) *Handler {
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		loop:    deps.Loop,
		store:   deps.Store,
		ctrl:    deps.Controller,
		source:  deps.Source,
		history: deps.History,
		log:     log.WithField("component", "handler"),
		now:     now,
	}
}

// onLoop runs task on the event loop, answering 503 when it is gone
func (h *Handler) onLoop(w http.ResponseWriter, r *http.Request, task func()) bool {
	err := h.loop.Do(r.Context(), task)
	if err == nil {
		return true
	}
	if errors.Is(err, loop.ErrStopped) {
		h.writeError(w, "Service unavailable", err.Error(), http.StatusServiceUnavailable)
		return false
	}
	h.log.WithError(err).Debug("request abandoned before the event loop ran it")
	h.writeError(w, "Request cancelled", err.Error(), http.StatusServiceUnavailable)
	return false
}

// viewResponse must be called on the loop
func (h *Handler) viewResponse() ViewResponse {
	return NewViewResponse(h.store.Snapshot())
}

func decodeBody(r *http.Request, v interface{}) error {
	return decodeJSON(r.Body, v)
}

// decodeJSON rejects unknown fields and validates the result
func decodeJSON(body io.Reader, v interface{}) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON")
	}
	return validateRequest(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to encode JSON")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.log.WithError(err).Error("failed to encode error response")
	}
}
