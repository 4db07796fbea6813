package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"meshgraph/internal/codec"
	"meshgraph/internal/domain"
)

// baseAppenders are always requested from the backend
var baseAppenders = []string{"deadNode", "istio", "serviceEntry", "sidecarsCheck", "workloadEntry", "health"}

// HTTPFetcher queries a Kiali-compatible graph API
type HTTPFetcher struct {
	baseURL *url.URL
	client  *http.Client
	codec   *codec.KialiCodec
	log     *logrus.Entry
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for the backend at baseURL. Each request is
// bounded by timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration, log *logrus.Entry) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("backend url %q must be http or https", baseURL)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &HTTPFetcher{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		codec:   codec.NewKialiCodec(),
		log:     log.WithField("component", "fetcher"),
	}, nil
}

// Fetch runs one graph query
func (f *HTTPFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.GraphData, error) {
	target := f.URL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build graph request")
	}
	httpReq.Header.Set("Accept", "application/json")

	f.log.WithField("url", target).Debug("querying graph")
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "graph request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("graph request failed: %s: %s", resp.Status, backendError(resp.Body))
	}

	data, err := f.codec.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// URL returns the backend URL serving req
func (f *HTTPFetcher) URL(req domain.FetchRequest) string {
	u := *f.baseURL
	u.Path = u.Path + graphPath(req)
	u.RawQuery = graphQuery(req).Encode()
	return u.String()
}

func graphPath(req domain.FetchRequest) string {
	node := req.Node
	if node == nil {
		return "/api/namespaces/graph"
	}

	ns := url.PathEscape(node.Namespace)
	switch node.Kind {
	case domain.NodeKindApp:
		p := fmt.Sprintf("/api/namespaces/%s/applications/%s", ns, url.PathEscape(node.App))
		if node.Version != "" {
			p += "/versions/" + url.PathEscape(node.Version)
		}
		return p + "/graph"
	case domain.NodeKindWorkload:
		return fmt.Sprintf("/api/namespaces/%s/workloads/%s/graph", ns, url.PathEscape(node.Workload))
	default:
		return fmt.Sprintf("/api/namespaces/%s/services/%s/graph", ns, url.PathEscape(node.Service))
	}
}

func graphQuery(req domain.FetchRequest) url.Values {
	q := url.Values{}
	if req.Node == nil {
		q.Set("namespaces", req.Namespaces.String())
	}
	q.Set("duration", strconv.FormatInt(int64(req.Duration/time.Second), 10)+"s")
	q.Set("graphType", string(req.GraphType))
	q.Set("injectServiceNodes", strconv.FormatBool(req.InjectServiceNodes))

	appenders := append([]string(nil), baseAppenders...)
	switch req.EdgeLabelMode {
	case domain.EdgeLabelResponseTime95:
		appenders = append(appenders, "responseTime")
		q.Set("responseTime", "95")
	case domain.EdgeLabelThroughput:
		appenders = append(appenders, "throughput")
	}
	if req.ShowSecurity {
		appenders = append(appenders, "securityPolicy")
	}
	if req.ShowUnusedNodes {
		appenders = append(appenders, "unusedNode")
	}
	q.Set("appenders", strings.Join(appenders, ","))

	if req.QueryTime > 0 {
		q.Set("queryTime", strconv.FormatInt(req.QueryTime/1000, 10))
	}
	return q
}

// backendError extracts the message of a Kiali error body
func backendError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil || len(raw) == 0 {
		return "empty response"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
