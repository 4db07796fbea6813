package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"meshgraph/internal/repository"
)

// Repository implements repository.FetchHistory using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.FetchHistory = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" && !strings.Contains(dbPath, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// a second connection to :memory: would see a different database
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetches (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		scope TEXT NOT NULL,
		namespaces JSON NOT NULL,
		graph_type TEXT NOT NULL,
		edge_label_mode TEXT NOT NULL,
		query_time INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		nodes INTEGER NOT NULL DEFAULT 0,
		edges INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_started ON fetches(started_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Record inserts a fetch record
func (r *Repository) Record(ctx context.Context, rec repository.FetchRecord) error {
	namespaces, err := json.Marshal(nonNil(rec.Namespaces))
	if err != nil {
		return errors.Wrap(err, "failed to marshal namespaces")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO fetches (id, scope, namespaces, graph_type, edge_label_mode, query_time,
			started_at, elapsed_ms, outcome, error, nodes, edges)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Scope, string(namespaces), rec.GraphType, rec.EdgeLabelMode, rec.QueryTime,
		rec.StartedAt.UTC(), rec.Elapsed.Milliseconds(), string(rec.Outcome), stringToNull(rec.Error),
		rec.Nodes, rec.Edges)
	if err != nil {
		return errors.Wrapf(err, "failed to insert fetch %s", rec.ID)
	}
	return nil
}

// List returns the newest records first
func (r *Repository) List(ctx context.Context, limit int) ([]repository.FetchRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope, namespaces, graph_type, edge_label_mode, query_time,
			started_at, elapsed_ms, outcome, error, nodes, edges
		FROM fetches
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query fetches")
	}
	defer rows.Close()

	records := make([]repository.FetchRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating fetches")
	}
	return records, nil
}

// Prune deletes everything but the newest retain records
func (r *Repository) Prune(ctx context.Context, retain int) (int64, error) {
	if retain < 0 {
		retain = 0
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM fetches
		WHERE seq NOT IN (SELECT seq FROM fetches ORDER BY seq DESC LIMIT ?)
	`, retain)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune fetches")
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
