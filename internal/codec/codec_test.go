package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/internal/domain"
)

const bookinfoPayload = `{
  "timestamp": 1700000000,
  "duration": 60,
  "graphType": "workload",
  "elements": {
    "nodes": [
      {"data": {"id": "n2", "nodeType": "workload", "namespace": "bookinfo", "workload": "reviews-v1", "app": "reviews", "version": "v1"}},
      {"data": {"id": "n1", "nodeType": "workload", "namespace": "bookinfo", "workload": "productpage-v1", "app": "productpage", "isRoot": true}}
    ],
    "edges": [
      {"data": {"id": "e1", "source": "n1", "target": "n2", "responseTime": "12.5", "isMTLS": "100",
        "traffic": {"protocol": "http", "rates": {"http": "3.2", "httpPercentReq": "100"}}}}
    ]
  }
}`

func sampleGraph() *domain.GraphData {
	return &domain.GraphData{
		Nodes: []domain.GraphNode{
			{ID: "n1", NodeType: "app", Namespace: "bookinfo", App: "productpage", IsRoot: true},
			{ID: "n2", NodeType: "app", Namespace: "bookinfo", App: "reviews", Version: "v2"},
		},
		Edges: []domain.GraphEdge{
			{ID: "e1", Source: "n1", Target: "n2", Traffic: map[string]string{"protocol": "http"}},
		},
		Timestamp: 1700000000000,
		Duration:  5 * time.Minute,
		GraphType: domain.GraphTypeVersionedApp,
	}
}

func TestKialiParse(t *testing.T) {
	data, err := NewKialiCodec().Parse(strings.NewReader(bookinfoPayload))
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000000), data.Timestamp)
	assert.Equal(t, time.Minute, data.Duration)
	assert.Equal(t, domain.GraphTypeWorkload, data.GraphType)

	require.Len(t, data.Nodes, 2)
	assert.Equal(t, "n1", data.Nodes[0].ID)
	assert.True(t, data.Nodes[0].IsRoot)
	assert.Equal(t, "v1", data.Nodes[1].Version)

	want := []domain.GraphEdge{{
		ID: "e1", Source: "n1", Target: "n2", ResponseTime: "12.5", IsMTLS: "100",
		Traffic: map[string]string{"protocol": "http", "http": "3.2", "httpPercentReq": "100"},
	}}
	if diff := cmp.Diff(want, data.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestKialiParseEmpty(t *testing.T) {
	data, err := NewKialiCodec().Parse(strings.NewReader(`{"timestamp": 1, "duration": 60, "elements": {}}`))
	require.NoError(t, err)
	assert.False(t, data.HasNodes())
	assert.NotNil(t, data.Edges)
}

func TestKialiParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `<html>`},
		{"node without id", `{"elements": {"nodes": [{"data": {"nodeType": "app"}}]}}`},
		{"dangling edge", `{"elements": {"nodes": [{"data": {"id": "a"}}], "edges": [{"data": {"id": "e", "source": "a", "target": "b"}}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKialiCodec().Parse(strings.NewReader(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestExportRoundTrip(t *testing.T) {
	tests := []struct {
		format   string
		codec    interface {
			Importer
			Exporter
		}
		duration time.Duration
	}{
		// the JSON form omits the window
		{"json", NewJSONCodec(), 0},
		{"yaml", NewYAMLCodec(), 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.codec.Export(sampleGraph(), &buf))

			got, err := tt.codec.Parse(&buf)
			require.NoError(t, err)

			want := sampleGraph()
			want.Duration = tt.duration
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExportNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(nil, &buf))
	assert.Contains(t, buf.String(), `"nodes": []`)
}

func TestExporterFor(t *testing.T) {
	for _, format := range []string{"", "json", "yaml", "yml"} {
		e, err := ExporterFor(format)
		require.NoError(t, err, format)
		assert.NotNil(t, e)
	}

	_, err := ExporterFor("graphml")
	assert.Error(t, err)

	assert.Equal(t, "application/yaml", ContentType("yaml"))
	assert.Equal(t, "application/json", ContentType("json"))
}
