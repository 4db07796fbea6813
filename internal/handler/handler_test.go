package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/internal/controller"
	"meshgraph/internal/domain"
	"meshgraph/internal/loop"
	"meshgraph/internal/repository"
	"meshgraph/internal/store"
	"meshgraph/internal/tracker"
)

type fakeController struct {
	retries   int
	renderErr error
	status    controller.Status
}

func (f *fakeController) Status() controller.Status { return f.status }
func (f *fakeController) Retry()                    { f.retries++ }

func (f *fakeController) Render(fn func() error) error {
	if f.renderErr != nil {
		return f.renderErr
	}
	return fn()
}

type fakeSource struct {
	data *domain.GraphData
}

func (f *fakeSource) GraphData() *domain.GraphData { return f.data }

type fakeHistory struct {
	mu      sync.Mutex
	records []repository.FetchRecord
	limit   int
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]repository.FetchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.records, nil
}

func (f *fakeHistory) lastLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	loop    *loop.Loop
	stop    context.CancelFunc
	store   *store.Store
	ctrl    *fakeController
	source  *fakeSource
	history *fakeHistory
	server  *httptest.Server
	commits int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{
		loop: loop.New(logrus.NewEntry(log)),
		stop: cancel,
		store: store.New(tracker.Snapshot{
			Params: domain.DefaultGraphQueryParams(),
			View:   domain.DefaultViewState(),
		}),
		ctrl: &fakeController{status: controller.Status{State: "idle"}},
		source: &fakeSource{data: &domain.GraphData{
			Nodes:     []domain.GraphNode{{ID: "n1", NodeType: "app", Namespace: "bookinfo", App: "reviews"}},
			Edges:     []domain.GraphEdge{},
			Timestamp: 1709294400000,
			GraphType: domain.GraphTypeVersionedApp,
		}},
		history: &fakeHistory{},
	}
	f.store.Subscribe(func(tracker.Snapshot) { f.commits++ })
	go f.loop.Run(ctx)
	t.Cleanup(cancel)

	h := New(Deps{
		Loop:       f.loop,
		Store:      f.store,
		Controller: f.ctrl,
		Source:     f.source,
		History:    f.history,
		Log:        logrus.NewEntry(log),
		Now:        func() time.Time { return fixedNow },
	})
	f.server = httptest.NewServer(NewRouter(h, RouterOptions{Gatherer: prometheus.NewRegistry()}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// read runs fn on the loop so state is read where it is written
func (f *fixture) read(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Do(context.Background(), fn))
}

func (f *fixture) params(t *testing.T) domain.GraphQueryParams {
	t.Helper()
	var p domain.GraphQueryParams
	f.read(t, func() { p = f.store.Params() })
	return p
}

func (f *fixture) view(t *testing.T) domain.ViewState {
	t.Helper()
	var v domain.ViewState
	f.read(t, func() { v = f.store.View() })
	return v
}

func (f *fixture) commitCount(t *testing.T) int {
	t.Helper()
	var n int
	f.read(t, func() { n = f.commits })
	return n
}

func (f *fixture) retryCount(t *testing.T) int {
	t.Helper()
	var n int
	f.read(t, func() { n = f.ctrl.retries })
	return n
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/graph", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get("Content-Disposition"))

	data := decode[domain.GraphData](t, resp)
	require.Len(t, data.Nodes, 1)
	assert.Equal(t, "reviews", data.Nodes[0].App)
	assert.Equal(t, int64(1709294400000), data.Timestamp)
}

func TestExportGraph(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/graph/export?format=yaml", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="meshgraph-20240301-120000.yaml"`, resp.Header.Get("Content-Disposition"))

	resp = f.do(t, http.MethodGet, "/api/graph/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportGraphRenderFailure(t *testing.T) {
	f := newFixture(t)
	f.read(t, func() { f.ctrl.renderErr = errors.New("layout exploded") })

	resp := f.do(t, http.MethodGet, "/api/graph", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "layout exploded", body.Details)
}

func TestStatusAndRetry(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/graph/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", decode[controller.Status](t, resp).State)

	resp = f.do(t, http.MethodPost, "/api/graph/retry", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, f.retryCount(t))
}

func TestLoopStopped(t *testing.T) {
	f := newFixture(t)
	f.stop()
	<-f.loop.Done()

	resp := f.do(t, http.MethodGet, "/api/graph/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetHistory(t *testing.T) {
	f := newFixture(t)
	f.history.mu.Lock()
	f.history.records = []repository.FetchRecord{{
		ID:         "req-1",
		Scope:      "bookinfo",
		Namespaces: []string{"bookinfo"},
		GraphType:  "versionedApp",
		StartedAt:  fixedNow,
		Elapsed:    250 * time.Millisecond,
		Outcome:    repository.OutcomeSuccess,
		Nodes:      4,
	}}
	f.history.mu.Unlock()

	resp := f.do(t, http.MethodGet, "/api/graph/history?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]HistoryEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ID)
	assert.Equal(t, int64(250), entries[0].ElapsedMs)
	assert.Equal(t, 5, f.history.lastLimit())

	for _, limit := range []string{"0", "abc", "5000"} {
		resp = f.do(t, http.MethodGet, "/api/graph/history?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, limit)
	}
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		name string
		path string
		want *domain.FocusedNode
	}{
		{
			name: "app",
			path: "/api/view/namespaces/bookinfo/applications/reviews",
			want: &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindApp, App: "reviews"},
		},
		{
			name: "app version",
			path: "/api/view/namespaces/bookinfo/applications/reviews/versions/v2",
			want: &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindApp, App: "reviews", Version: "v2"},
		},
		{
			name: "workload",
			path: "/api/view/namespaces/bookinfo/workloads/reviews-v2",
			want: &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindWorkload, Workload: "reviews-v2"},
		},
		{
			name: "service",
			path: "/api/view/namespaces/bookinfo/services/details",
			want: &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindService, Service: "details"},
		},
		{
			name: "unknown app falls back to service",
			path: "/api/view/namespaces/bookinfo/applications/unknown",
			want: &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindService},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			resp := f.do(t, http.MethodPut, tt.path, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, f.params(t).FocusedNode)
			assert.Equal(t, tt.want, decode[ViewResponse](t, resp).Params.FocusedNode)
		})
	}
}

func TestNavigateQuery(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/view/node?namespace=bookinfo&workload=reviews&version=v1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	want := &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindWorkload, Workload: "reviews", Version: "v1"}
	assert.Equal(t, want, f.params(t).FocusedNode)

	resp = f.do(t, http.MethodPut, "/api/view/node?app=undefined&namespace=unknown", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, f.params(t).FocusedNode)
}

func TestClearNode(t *testing.T) {
	f := newFixture(t)
	f.read(t, func() {
		f.store.SetFocusedNode(&domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindApp, App: "reviews"})
	})

	resp := f.do(t, http.MethodDelete, "/api/view/node", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, f.params(t).FocusedNode)
}

func TestPatchParams(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPatch, "/api/view/params",
		`{"namespaces":["travels","bookinfo"],"duration":600,"graphType":"workload","edgeLabelMode":"responseTime95thPercentile","showSecurity":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p := f.params(t)
	assert.True(t, p.Namespaces.Equal(domain.NewNamespaceSet("bookinfo", "travels")))
	assert.Equal(t, 10*time.Minute, p.Duration)
	assert.Equal(t, domain.GraphTypeWorkload, p.GraphType)
	assert.Equal(t, domain.EdgeLabelResponseTime95, p.EdgeLabelMode)
	assert.True(t, p.ShowSecurity)
	assert.True(t, p.ShowServiceNodes, "absent fields keep their value")
	assert.Equal(t, 1, f.commitCount(t), "one patch is one commit")

	view := decode[ViewResponse](t, resp)
	assert.Equal(t, int64(600), view.Params.Duration)
}

func TestPatchParamsRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad graph type", `{"graphType":"cluster"}`},
		{"bad label mode", `{"edgeLabelMode":"latency"}`},
		{"zero duration", `{"duration":0}`},
		{"empty namespace", `{"namespaces":[""]}`},
		{"unknown field", `{"colour":"red"}`},
		{"not json", `namespaces=bookinfo`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			resp := f.do(t, http.MethodPatch, "/api/view/params", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Zero(t, f.commitCount(t))
		})
	}
}

func TestPatchUI(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPatch, "/api/view/ui", `{"layout":"cola","showLegend":true,"focusSelector":"node[id=\"n1\"]"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := f.view(t)
	assert.Equal(t, domain.LayoutCola, v.Layout)
	assert.True(t, v.ShowLegend)
	assert.Equal(t, `node[id="n1"]`, v.FocusSelector)

	resp = f.do(t, http.MethodPatch, "/api/view/ui", `{"layout":"circle"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshAndReplay(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/view/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fixedNow.UnixMilli(), f.params(t).LastRefreshAt)

	resp = f.do(t, http.MethodPut, "/api/view/replay", `{"queryTime":1709290000000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1709290000000), f.params(t).ReplayQueryTime)

	resp = f.do(t, http.MethodPut, "/api/view/replay", `{"queryTime":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, f.params(t).IsReplay())

	resp = f.do(t, http.MethodPut, "/api/view/replay", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodOptions, "/api/view/params", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestViewSocket(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/view/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	exchange := func(msg SocketMessage) map[string]json.RawMessage {
		t.Helper()
		require.NoError(t, ws.WriteJSON(msg))
		var reply map[string]json.RawMessage
		require.NoError(t, ws.ReadJSON(&reply))
		return reply
	}
	replyType := func(reply map[string]json.RawMessage) string {
		var s string
		require.NoError(t, json.Unmarshal(reply["type"], &s))
		return s
	}

	reply := exchange(SocketMessage{Type: MessageParams, ID: "1", Data: json.RawMessage(`{"namespaces":["bookinfo"]}`)})
	assert.Equal(t, ReplyAck, replyType(reply))
	assert.JSONEq(t, `"1"`, string(reply["id"]))
	assert.True(t, f.params(t).Namespaces.Equal(domain.NewNamespaceSet("bookinfo")))

	reply = exchange(SocketMessage{Type: MessageNavigate, Data: json.RawMessage(`{"namespace":"bookinfo","workload":"reviews-v2"}`)})
	assert.Equal(t, ReplyAck, replyType(reply))
	require.NotNil(t, f.params(t).FocusedNode)
	assert.Equal(t, domain.NodeKindWorkload, f.params(t).FocusedNode.Kind)

	reply = exchange(SocketMessage{Type: MessageNavigate})
	assert.Equal(t, ReplyAck, replyType(reply))
	assert.Nil(t, f.params(t).FocusedNode)

	reply = exchange(SocketMessage{Type: MessageRetry})
	assert.Equal(t, ReplyStatus, replyType(reply))
	assert.Equal(t, 1, f.retryCount(t))

	reply = exchange(SocketMessage{Type: MessageUI, Data: json.RawMessage(`{"layout":"hexagon"}`)})
	assert.Equal(t, ReplyError, replyType(reply))

	reply = exchange(SocketMessage{Type: "teleport"})
	assert.Equal(t, ReplyError, replyType(reply))

	reply = exchange(SocketMessage{Type: MessagePing})
	assert.Equal(t, ReplyPong, replyType(reply))
}
