package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"meshgraph/internal/repository"
)

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (repository.FetchRecord, error) {
	var (
		rec        repository.FetchRecord
		namespaces string
		outcome    string
		errMsg     sql.NullString
		elapsedMS  int64
	)

	if err := row.Scan(&rec.ID, &rec.Scope, &namespaces, &rec.GraphType, &rec.EdgeLabelMode,
		&rec.QueryTime, &rec.StartedAt, &elapsedMS, &outcome, &errMsg, &rec.Nodes, &rec.Edges); err != nil {
		return rec, errors.Wrap(err, "failed to scan fetch")
	}

	if err := json.Unmarshal([]byte(namespaces), &rec.Namespaces); err != nil {
		return rec, errors.Wrapf(err, "failed to unmarshal namespaces of fetch %s", rec.ID)
	}
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	rec.Outcome = repository.Outcome(outcome)
	rec.Error = nullToString(errMsg)
	return rec, nil
}
