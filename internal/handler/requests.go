package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mkmik/multierror"
	"github.com/pkg/errors"

	"meshgraph/internal/domain"
	"meshgraph/internal/selector"
	"meshgraph/internal/tracker"
)

var validate = validator.New()

// ParamsPatch changes fetch-relevant params. Absent fields are left alone and
// present ones are committed together.
type ParamsPatch struct {
	Namespaces       *[]string `json:"namespaces,omitempty" validate:"omitempty,dive,required,max=63"`
	Duration         *int64    `json:"duration,omitempty" validate:"omitempty,min=1,max=2592000"`
	GraphType        *string   `json:"graphType,omitempty" validate:"omitempty,oneof=app service versionedApp workload"`
	EdgeLabelMode    *string   `json:"edgeLabelMode,omitempty" validate:"omitempty,oneof=noLabel requestRate requestDistribution throughput responseTime95thPercentile"`
	ShowServiceNodes *bool     `json:"showServiceNodes,omitempty"`
	ShowSecurity     *bool     `json:"showSecurity,omitempty"`
	ShowUnusedNodes  *bool     `json:"showUnusedNodes,omitempty"`
}

// Apply writes the patch into a snapshot
func (p ParamsPatch) Apply(st *tracker.Snapshot) {
	if p.Namespaces != nil {
		st.Params.Namespaces = domain.NewNamespaceSet(*p.Namespaces...)
	}
	if p.Duration != nil {
		st.Params.Duration = time.Duration(*p.Duration) * time.Second
	}
	if p.GraphType != nil {
		st.Params.GraphType = domain.ParseGraphType(*p.GraphType)
	}
	if p.EdgeLabelMode != nil {
		st.Params.EdgeLabelMode = domain.ParseEdgeLabelMode(*p.EdgeLabelMode)
	}
	if p.ShowServiceNodes != nil {
		st.Params.ShowServiceNodes = *p.ShowServiceNodes
	}
	if p.ShowSecurity != nil {
		st.Params.ShowSecurity = *p.ShowSecurity
	}
	if p.ShowUnusedNodes != nil {
		st.Params.ShowUnusedNodes = *p.ShowUnusedNodes
	}
}

// UIPatch changes UI settings
type UIPatch struct {
	Layout        *string `json:"layout,omitempty" validate:"omitempty,oneof=dagre cose-bilkent cola"`
	ShowLegend    *bool   `json:"showLegend,omitempty"`
	TourActive    *bool   `json:"tourActive,omitempty"`
	FocusSelector *string `json:"focusSelector,omitempty" validate:"omitempty,max=256"`
}

// Apply writes the patch into a snapshot
func (p UIPatch) Apply(st *tracker.Snapshot) {
	if p.Layout != nil {
		st.View.Layout = domain.ParseLayout(*p.Layout)
	}
	if p.ShowLegend != nil {
		st.View.ShowLegend = *p.ShowLegend
	}
	if p.TourActive != nil {
		st.View.TourActive = *p.TourActive
	}
	if p.FocusSelector != nil {
		st.View.FocusSelector = *p.FocusSelector
	}
}

// ReplayRequest freezes the view at QueryTime, unix milliseconds. Zero returns
// to the live view.
type ReplayRequest struct {
	QueryTime *int64 `json:"queryTime" validate:"required,min=0"`
}

// NodeRequest navigates to a node. Absent markers are accepted and mean "no node".
type NodeRequest struct {
	App       string `json:"app,omitempty" validate:"max=253"`
	Namespace string `json:"namespace,omitempty" validate:"max=63"`
	Service   string `json:"service,omitempty" validate:"max=253"`
	Version   string `json:"version,omitempty" validate:"max=63"`
	Workload  string `json:"workload,omitempty" validate:"max=253"`
}

// FocusedNode derives the node, nil when none of the identity fields is set
func (n NodeRequest) FocusedNode() *domain.FocusedNode {
	return selector.DeriveFocusedNode(selector.RawParams{
		App:       n.App,
		Namespace: n.Namespace,
		Service:   n.Service,
		Version:   n.Version,
		Workload:  n.Workload,
	})
}

// validateRequest checks v and folds every field failure into one error
func validateRequest(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, errors.Errorf("%s: failed %q (%v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return multierror.Join(errs)
}
