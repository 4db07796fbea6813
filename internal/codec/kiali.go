package codec

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"

	"meshgraph/internal/domain"
)

// KialiCodec reads the cytoscape-style payload served by the mesh graph API
type KialiCodec struct{}

// NewKialiCodec creates a new Kiali codec
func NewKialiCodec() *KialiCodec {
	return &KialiCodec{}
}

// Format returns the codec format identifier
func (c *KialiCodec) Format() string {
	return "kiali"
}

type kialiConfig struct {
	Timestamp int64         `json:"timestamp"`
	Duration  int64         `json:"duration"`
	GraphType string        `json:"graphType"`
	Elements  kialiElements `json:"elements"`
}

type kialiElements struct {
	Nodes []kialiNodeWrapper `json:"nodes"`
	Edges []kialiEdgeWrapper `json:"edges"`
}

type kialiNodeWrapper struct {
	Data kialiNode `json:"data"`
}

type kialiNode struct {
	ID        string `json:"id"`
	NodeType  string `json:"nodeType"`
	Namespace string `json:"namespace"`
	App       string `json:"app"`
	Workload  string `json:"workload"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	IsRoot    bool   `json:"isRoot"`
	IsUnused  bool   `json:"isUnused"`
}

type kialiEdgeWrapper struct {
	Data kialiEdge `json:"data"`
}

type kialiEdge struct {
	ID           string       `json:"id"`
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	ResponseTime string       `json:"responseTime"`
	IsMTLS       string       `json:"isMTLS"`
	Traffic      kialiTraffic `json:"traffic"`
}

type kialiTraffic struct {
	Protocol string            `json:"protocol"`
	Rates    map[string]string `json:"rates"`
}

// Parse decodes a graph payload. The backend reports timestamp and duration in
// seconds.
func (c *KialiCodec) Parse(r io.Reader) (*domain.GraphData, error) {
	var cfg kialiConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse graph payload")
	}

	data := domain.NewGraphData()
	data.Timestamp = cfg.Timestamp * 1000
	data.Duration = time.Duration(cfg.Duration) * time.Second
	data.GraphType = domain.ParseGraphType(cfg.GraphType)

	seen := make(map[string]struct{}, len(cfg.Elements.Nodes))
	for _, w := range cfg.Elements.Nodes {
		n := w.Data
		if n.ID == "" {
			return nil, errors.New("graph payload contains a node without id")
		}
		seen[n.ID] = struct{}{}
		data.Nodes = append(data.Nodes, domain.GraphNode{
			ID:        n.ID,
			NodeType:  n.NodeType,
			Namespace: n.Namespace,
			App:       n.App,
			Workload:  n.Workload,
			Service:   n.Service,
			Version:   n.Version,
			IsRoot:    n.IsRoot,
			IsUnused:  n.IsUnused,
		})
	}

	for _, w := range cfg.Elements.Edges {
		e := w.Data
		if _, ok := seen[e.Source]; !ok {
			return nil, errors.Errorf("edge %s references unknown source %q", e.ID, e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return nil, errors.Errorf("edge %s references unknown target %q", e.ID, e.Target)
		}
		data.Edges = append(data.Edges, domain.GraphEdge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			ResponseTime: e.ResponseTime,
			IsMTLS:       e.IsMTLS,
			Traffic:      flattenTraffic(e.Traffic),
		})
	}

	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	return data, nil
}

func flattenTraffic(t kialiTraffic) map[string]string {
	if t.Protocol == "" && len(t.Rates) == 0 {
		return nil
	}
	out := make(map[string]string, len(t.Rates)+1)
	for k, v := range t.Rates {
		out[k] = v
	}
	if t.Protocol != "" {
		out["protocol"] = t.Protocol
	}
	return out
}
