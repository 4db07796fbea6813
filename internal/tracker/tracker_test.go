package tracker

import (
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/internal/domain"
	"meshgraph/internal/selector"
)

func baseParams() domain.GraphQueryParams {
	p := domain.DefaultGraphQueryParams()
	p.Namespaces = domain.NamespaceSet{"bookinfo"}
	p.Duration = 60 * time.Second
	p.EdgeLabelMode = domain.EdgeLabelRequestRate
	p.LastRefreshAt = 1000
	return p
}

func TestShouldRefetchIdenticalCopy(t *testing.T) {
	f := func(p domain.GraphQueryParams) bool {
		shallow := p.Clone()
		deep := p.Clone()
		deep.FocusedNode = p.FocusedNode.Clone()
		return !ShouldRefetch(p, p) && !ShouldRefetch(p, shallow) && !ShouldRefetch(p, deep)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestShouldRefetchCopyWithBlankNamespace(t *testing.T) {
	p := baseParams()
	p.Namespaces = domain.NamespaceSet{"bookinfo", " "}

	assert.False(t, ShouldRefetch(p, p.Clone()))
	assert.Empty(t, Changes(p, p.Clone()))
}

func TestChangesSingleField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.GraphQueryParams)
		want   []Trigger
	}{
		{"namespace added", func(p *domain.GraphQueryParams) { p.Namespaces = domain.NamespaceSet{"bookinfo", "istio-system"} }, []Trigger{TriggerNamespaces}},
		{"duration", func(p *domain.GraphQueryParams) { p.Duration = 5 * time.Minute }, []Trigger{TriggerDuration}},
		{"graph type", func(p *domain.GraphQueryParams) { p.GraphType = domain.GraphTypeWorkload }, []Trigger{TriggerGraphType}},
		{"refresh tick", func(p *domain.GraphQueryParams) { p.LastRefreshAt = 2000 }, []Trigger{TriggerRefreshTick}},
		{"replay entered", func(p *domain.GraphQueryParams) { p.ReplayQueryTime = 5000 }, []Trigger{TriggerReplayQueryTime}},
		{"service nodes", func(p *domain.GraphQueryParams) { p.ShowServiceNodes = !p.ShowServiceNodes }, []Trigger{TriggerShowServiceNodes}},
		{"security", func(p *domain.GraphQueryParams) { p.ShowSecurity = true }, []Trigger{TriggerShowSecurity}},
		{"unused nodes", func(p *domain.GraphQueryParams) { p.ShowUnusedNodes = true }, []Trigger{TriggerShowUnusedNodes}},
		{"node focused", func(p *domain.GraphQueryParams) {
			p.FocusedNode = &domain.FocusedNode{Namespace: "bookinfo", Kind: domain.NodeKindApp, App: "reviews"}
		}, []Trigger{TriggerFocusedNode}},
		{"label mode to percentile", func(p *domain.GraphQueryParams) { p.EdgeLabelMode = domain.EdgeLabelResponseTime95 }, []Trigger{TriggerEdgeLabelMode}},
		{"label mode to distribution", func(p *domain.GraphQueryParams) { p.EdgeLabelMode = domain.EdgeLabelRequestDistribution }, nil},
		{"no change", func(p *domain.GraphQueryParams) {}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := baseParams()
			cur := prev.Clone()
			tt.mutate(&cur)

			got := Changes(prev, cur)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want) > 0, ShouldRefetch(prev, cur))
		})
	}
}

func TestEdgeLabelModeAsymmetry(t *testing.T) {
	prev := baseParams()
	prev.EdgeLabelMode = domain.EdgeLabelResponseTime95

	cur := prev.Clone()
	cur.EdgeLabelMode = domain.EdgeLabelNone
	assert.False(t, ShouldRefetch(prev, cur), "leaving percentile mode must not refetch")

	back := cur.Clone()
	back.EdgeLabelMode = domain.EdgeLabelResponseTime95
	assert.True(t, ShouldRefetch(cur, back), "entering percentile mode must refetch")
}

func TestRefreshTickDuringReplay(t *testing.T) {
	t.Run("replay suppresses ticks", func(t *testing.T) {
		prev := baseParams()
		prev.ReplayQueryTime = 5000
		cur := prev.Clone()
		cur.LastRefreshAt = prev.LastRefreshAt + 15000

		assert.False(t, ShouldRefetch(prev, cur))
	})

	t.Run("live view honours ticks", func(t *testing.T) {
		prev := baseParams()
		cur := prev.Clone()
		cur.LastRefreshAt = prev.LastRefreshAt + 15000

		assert.True(t, ShouldRefetch(prev, cur))
	})

	t.Run("leaving replay with a tick fires both", func(t *testing.T) {
		prev := baseParams()
		prev.ReplayQueryTime = 5000
		cur := prev.Clone()
		cur.ReplayQueryTime = 0
		cur.LastRefreshAt = prev.LastRefreshAt + 1

		assert.Equal(t, []Trigger{TriggerRefreshTick, TriggerReplayQueryTime}, Changes(prev, cur))
	})
}

func TestNamespacesReorderedIsNoChange(t *testing.T) {
	prev := baseParams()
	prev.Namespaces = domain.NamespaceSet{"a", "b"}
	cur := prev.Clone()
	cur.Namespaces = domain.NamespaceSet{"b", "a"}

	assert.False(t, ShouldRefetch(prev, cur))
}

func TestFocusWorkloadByNavigation(t *testing.T) {
	prev := baseParams()
	prev.Namespaces = domain.NamespaceSet{"bookinfo"}
	prev.Duration = 60 * time.Second

	cur := prev.Clone()
	cur.FocusedNode = selector.DeriveFocusedNode(selector.RawParams{Namespace: "bookinfo", Workload: "reviews"})

	require.True(t, ShouldRefetch(prev, cur))

	req := domain.NewFetchRequest(cur)
	assert.Equal(t, domain.NamespaceSet{"bookinfo"}, req.Namespaces)
	require.NotNil(t, req.Node)
	assert.Equal(t, domain.NodeKindWorkload, req.Node.Kind)
	assert.Equal(t, "reviews", req.Node.Workload)
}

func TestChangesAreOrdered(t *testing.T) {
	prev := baseParams()
	cur := prev.Clone()
	cur.ShowSecurity = true
	cur.Duration = time.Hour
	cur.Namespaces = domain.NamespaceSet{"other"}

	assert.Equal(t, []Trigger{TriggerNamespaces, TriggerDuration, TriggerShowSecurity}, Changes(prev, cur))
}
