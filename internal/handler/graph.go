package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"meshgraph/internal/codec"
	"meshgraph/internal/controller"
	"meshgraph/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// GetGraph returns the current graph data as JSON
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.exportGraph(w, r, "json", false)
}

// ExportGraph returns the current graph data in the requested format as a download
func (h *Handler) ExportGraph(w http.ResponseWriter, r *http.Request) {
	h.exportGraph(w, r, r.URL.Query().Get("format"), true)
}

// exportGraph serializes on the loop so the data cannot change underneath.
// Failures go through the render boundary and surface in the status.
func (h *Handler) exportGraph(w http.ResponseWriter, r *http.Request, format string, download bool) {
	exporter, err := codec.ExporterFor(format)
	if err != nil {
		h.writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	var renderErr error
	if !h.onLoop(w, r, func() {
		renderErr = h.ctrl.Render(func() error {
			return exporter.Export(h.source.GraphData(), &buf)
		})
	}) {
		return
	}
	if renderErr != nil {
		h.log.WithError(renderErr).Error("failed to export graph")
		h.writeError(w, "Failed to render graph", renderErr.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", codec.ContentType(exporter.Format()))
	if download {
		filename := fmt.Sprintf("meshgraph-%s.%s", h.now().Format("20060102-150405"), exporter.Format())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.WithError(err).Debug("failed to write graph")
	}
}

// GetStatus returns the refresh controller status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var st controller.Status
	if !h.onLoop(w, r, func() { st = h.ctrl.Status() }) {
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// Retry clears a render error and fetches again
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	var st controller.Status
	if !h.onLoop(w, r, func() {
		h.ctrl.Retry()
		st = h.ctrl.Status()
	}) {
		return
	}
	h.writeJSON(w, st, http.StatusAccepted)
}

// HistoryEntry is one fetch in the history response
type HistoryEntry struct {
	ID            string   `json:"id"`
	Scope         string   `json:"scope"`
	Namespaces    []string `json:"namespaces"`
	GraphType     string   `json:"graphType"`
	EdgeLabelMode string   `json:"edgeLabelMode"`
	QueryTime     int64    `json:"queryTime,omitempty"`
	StartedAt     string   `json:"startedAt"`
	ElapsedMs     int64    `json:"elapsedMs"`
	Outcome       string   `json:"outcome"`
	Error         string   `json:"error,omitempty"`
	Nodes         int      `json:"nodes"`
	Edges         int      `json:"edges"`
}

func historyEntry(rec repository.FetchRecord) HistoryEntry {
	return HistoryEntry{
		ID:            rec.ID,
		Scope:         rec.Scope,
		Namespaces:    rec.Namespaces,
		GraphType:     rec.GraphType,
		EdgeLabelMode: rec.EdgeLabelMode,
		QueryTime:     rec.QueryTime,
		StartedAt:     rec.StartedAt.UTC().Format(time.RFC3339Nano),
		ElapsedMs:     rec.Elapsed.Milliseconds(),
		Outcome:       string(rec.Outcome),
		Error:         rec.Error,
		Nodes:         rec.Nodes,
		Edges:         rec.Edges,
	}
}

// GetHistory lists recent fetches, newest first
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, "History disabled", "no history store configured", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxHistoryLimit {
			h.writeError(w, "Invalid limit", fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list fetch history")
		h.writeError(w, "Failed to list history", err.Error(), http.StatusInternalServerError)
		return
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry(rec))
	}
	h.writeJSON(w, entries, http.StatusOK)
}
