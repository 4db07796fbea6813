package controller

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"meshgraph/internal/domain"
	"meshgraph/internal/metrics"
)

// RenderError is a failure of the graph rendering collaborator. The fetched
// data it was rendering stays valid.
type RenderError struct {
	Layout domain.Layout
	At     time.Time
	Cause  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed with layout %s: %v", e.Layout, e.Cause)
}

// Unwrap returns the underlying failure
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// RenderBoundary isolates render failures. It keeps the last one until Reset.
type RenderBoundary struct {
	err     *RenderError
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewRenderBoundary creates a boundary
func NewRenderBoundary(m *metrics.Metrics, log *logrus.Entry) *RenderBoundary {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RenderBoundary{metrics: m, log: log.WithField("component", "render")}
}

// Render runs fn, turning a returned error or a panic into a *RenderError
func (b *RenderBoundary) Render(layout domain.Layout, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = b.capture(layout, errors.Errorf("panic: %v", r))
		}
	}()

	if ferr := fn(); ferr != nil {
		return b.capture(layout, ferr)
	}
	return nil
}

func (b *RenderBoundary) capture(layout domain.Layout, cause error) *RenderError {
	b.err = &RenderError{Layout: layout, At: time.Now(), Cause: cause}
	b.metrics.RenderError()
	b.log.WithError(cause).WithField("layout", layout).Warn("graph render failed")
	return b.err
}

// Err returns the captured failure, nil when there is none
func (b *RenderBoundary) Err() *RenderError {
	return b.err
}

// Reset clears the captured failure and reports whether there was one
func (b *RenderBoundary) Reset() bool {
	had := b.err != nil
	b.err = nil
	return had
}
