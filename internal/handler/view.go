package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"meshgraph/internal/domain"
	"meshgraph/internal/selector"
	"meshgraph/internal/tracker"
)

// ParamsResponse is the JSON form of the query params. Duration is in seconds.
type ParamsResponse struct {
	Namespaces       []string             `json:"namespaces"`
	Duration         int64                `json:"duration"`
	GraphType        domain.GraphType     `json:"graphType"`
	EdgeLabelMode    domain.EdgeLabelMode `json:"edgeLabelMode"`
	ShowServiceNodes bool                 `json:"showServiceNodes"`
	ShowSecurity     bool                 `json:"showSecurity"`
	ShowUnusedNodes  bool                 `json:"showUnusedNodes"`
	FocusedNode      *domain.FocusedNode  `json:"focusedNode,omitempty"`
	ReplayQueryTime  int64                `json:"replayQueryTime,omitempty"`
	LastRefreshAt    int64                `json:"lastRefreshAt,omitempty"`
}

// UIResponse is the JSON form of the view state
type UIResponse struct {
	Layout        domain.Layout `json:"layout"`
	ShowLegend    bool          `json:"showLegend"`
	TourActive    bool          `json:"tourActive"`
	FocusSelector string        `json:"focusSelector,omitempty"`
}

// ViewResponse is the current view state
type ViewResponse struct {
	Params ParamsResponse `json:"params"`
	UI     UIResponse     `json:"ui"`
}

// NewViewResponse converts a snapshot
func NewViewResponse(snap tracker.Snapshot) ViewResponse {
	p := snap.Params
	return ViewResponse{
		Params: ParamsResponse{
			Namespaces:       p.Namespaces.Names(),
			Duration:         int64(p.Duration.Seconds()),
			GraphType:        p.GraphType,
			EdgeLabelMode:    p.EdgeLabelMode,
			ShowServiceNodes: p.ShowServiceNodes,
			ShowSecurity:     p.ShowSecurity,
			ShowUnusedNodes:  p.ShowUnusedNodes,
			FocusedNode:      p.FocusedNode.Clone(),
			ReplayQueryTime:  p.ReplayQueryTime,
			LastRefreshAt:    p.LastRefreshAt,
		},
		UI: UIResponse{
			Layout:        snap.View.Layout,
			ShowLegend:    snap.View.ShowLegend,
			TourActive:    snap.View.TourActive,
			FocusSelector: snap.View.FocusSelector,
		},
	}
}

// GetView returns the current params and UI state
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	var resp ViewResponse
	if !h.onLoop(w, r, func() { resp = h.viewResponse() }) {
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// NavigateApp focuses an application, optionally a single version of it
func (h *Handler) NavigateApp(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, selector.RawParams{
		Namespace: chi.URLParam(r, "namespace"),
		App:       chi.URLParam(r, "app"),
		Version:   chi.URLParam(r, "version"),
	})
}

// NavigateWorkload focuses a workload
func (h *Handler) NavigateWorkload(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, selector.RawParams{
		Namespace: chi.URLParam(r, "namespace"),
		Workload:  chi.URLParam(r, "workload"),
	})
}

// NavigateService focuses a service
func (h *Handler) NavigateService(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, selector.RawParams{
		Namespace: chi.URLParam(r, "namespace"),
		Service:   chi.URLParam(r, "service"),
	})
}

// NavigateQuery focuses the node named by the query string, as in a shared
// graph link. Parameters naming no node clear the focus.
func (h *Handler) NavigateQuery(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, selector.RawParamsFromValues(r.URL.Query()))
}

// ClearNode returns to the namespace graph
func (h *Handler) ClearNode(w http.ResponseWriter, r *http.Request) {
	var resp ViewResponse
	if !h.onLoop(w, r, func() {
		h.store.SetFocusedNode(nil)
		resp = h.viewResponse()
	}) {
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, raw selector.RawParams) {
	node := selector.DeriveFocusedNode(raw)
	var resp ViewResponse
	if !h.onLoop(w, r, func() {
		h.store.SetFocusedNode(node)
		resp = h.viewResponse()
	}) {
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// PatchParams applies a toolbar change in one commit
func (h *Handler) PatchParams(w http.ResponseWriter, r *http.Request) {
	var patch ParamsPatch
	if err := decodeBody(r, &patch); err != nil {
		h.writeError(w, "Invalid params", err.Error(), http.StatusBadRequest)
		return
	}
	h.update(w, r, patch.Apply)
}

// PatchUI applies a UI change in one commit
func (h *Handler) PatchUI(w http.ResponseWriter, r *http.Request) {
	var patch UIPatch
	if err := decodeBody(r, &patch); err != nil {
		h.writeError(w, "Invalid UI settings", err.Error(), http.StatusBadRequest)
		return
	}
	h.update(w, r, patch.Apply)
}

// Refresh records a manual refresh tick
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	now := h.now().UnixMilli()
	h.update(w, r, func(st *tracker.Snapshot) { st.Params.LastRefreshAt = now })
}

// Replay freezes the view at the requested instant, or returns to live with 0
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, "Invalid replay request", err.Error(), http.StatusBadRequest)
		return
	}
	h.update(w, r, func(st *tracker.Snapshot) { st.Params.ReplayQueryTime = *req.QueryTime })
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, mutate func(*tracker.Snapshot)) {
	var resp ViewResponse
	if !h.onLoop(w, r, func() {
		h.store.Update(mutate)
		resp = h.viewResponse()
	}) {
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}
