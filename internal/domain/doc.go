// Package domain defines the core value types of the meshgraph graph-refresh service.
//
// These types describe what the dashboard is looking at and what must be fetched
// from the mesh backend to show it.
//
// # Core Types
//
// FocusedNode identifies the single application, workload or service the view is
// narrowed to. A nil *FocusedNode means no node is focused and the graph covers all
// active namespaces.
//
// NamespaceSet is the ordered list of active namespaces. For refresh decisions it
// compares as a set of names.
//
// GraphQueryParams is the snapshot of every input that influences what graph data
// must be fetched. ViewState carries the UI-only settings that share the same
// change-detection pass (layout, legend, tour, focus selector).
//
// FetchRequest is what is actually submitted to the graph data source. GraphData is
// what comes back.
//
// # Design Principles
//
// - Plain values, safe to copy between snapshots
// - No I/O, no logging
// - String-typed enumerations with Parse helpers that fall back to defaults
package domain
