// Package repository defines the fetch history store.
//
// Every graph fetch the data source completes is written as a FetchRecord:
// the request scope and query settings, when it started, how long it took,
// its outcome and the size of the returned graph. Writes go through
// FetchRecorder so the data source never depends on the full history API.
//
// # FetchHistory
//
// FetchHistory adds reads and retention on top of FetchRecorder. List
// returns the newest records first and backs GET /api/graph/history. Prune
// keeps the newest N records; the server calls it once at startup with
// history.retain from the config.
//
// # SQLite Implementation
//
// The sqlite subpackage keeps records in a single fetches table indexed by
// start time, in WAL mode when backed by a file. The schema is created on
// open. Tests run against in-memory databases.
package repository
