package repository

import (
	"context"
	"time"
)

// Outcome of a recorded fetch
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeEmpty   Outcome = "empty"
)

// FetchRecord is one graph fetch as seen by the data source
type FetchRecord struct {
	ID            string        `json:"id"`
	Scope         string        `json:"scope"`
	Namespaces    []string      `json:"namespaces"`
	GraphType     string        `json:"graphType"`
	EdgeLabelMode string        `json:"edgeLabelMode"`
	QueryTime     int64         `json:"queryTime,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	Elapsed       time.Duration `json:"elapsed"`
	Outcome       Outcome       `json:"outcome"`
	Error         string        `json:"error,omitempty"`
	Nodes         int           `json:"nodes"`
	Edges         int           `json:"edges"`
}

// FetchRecorder stores fetch records
type FetchRecorder interface {
	Record(ctx context.Context, rec FetchRecord) error
}

// FetchHistory defines the interface for fetch history access
type FetchHistory interface {
	FetchRecorder

	// List returns the newest records first, at most limit of them
	List(ctx context.Context, limit int) ([]FetchRecord, error)

	// Prune keeps the newest retain records and returns how many were removed
	Prune(ctx context.Context, retain int) (int64, error)

	// Close releases resources
	Close() error
}
