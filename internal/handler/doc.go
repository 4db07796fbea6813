// Package handler implements the HTTP API of the meshgraph service.
//
// Handlers never touch view state directly. Every read and write of the store,
// the controller or the data source is submitted to the event loop, so HTTP
// requests are serialised with fetch completions and refresh ticks.
//
// # Routes
//
// Graph routes read the current graph data, the controller status and the fetch
// history, and let clients retry a failed fetch.
//
// View routes change what is fetched: navigation to a focused node, toolbar and
// duration changes, UI settings, manual refresh ticks and replay. The same
// changes can be streamed over a WebSocket.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 202).
// Error responses return JSON with {error, details} structure.
package handler
