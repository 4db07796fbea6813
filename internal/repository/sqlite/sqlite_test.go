package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgraph/internal/repository"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func record(id string, outcome repository.Outcome) repository.FetchRecord {
	return repository.FetchRecord{
		ID:            id,
		Scope:         "bookinfo",
		Namespaces:    []string{"bookinfo"},
		GraphType:     "versionedApp",
		EdgeLabelMode: "noLabel",
		StartedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:       250 * time.Millisecond,
		Outcome:       outcome,
		Nodes:         4,
		Edges:         3,
	}
}

func TestRecordAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ok := record("f1", repository.OutcomeSuccess)
	failed := record("f2", repository.OutcomeError)
	failed.Error = "backend unavailable"
	failed.Nodes, failed.Edges = 0, 0
	failed.QueryTime = 1700000000000

	require.NoError(t, repo.Record(ctx, ok))
	require.NoError(t, repo.Record(ctx, failed))

	got, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// newest first
	assert.Equal(t, failed.ID, got[0].ID)
	assert.Equal(t, "backend unavailable", got[0].Error)
	assert.Equal(t, repository.OutcomeError, got[0].Outcome)
	assert.Equal(t, int64(1700000000000), got[0].QueryTime)

	assert.Equal(t, ok.ID, got[1].ID)
	assert.Equal(t, []string{"bookinfo"}, got[1].Namespaces)
	assert.Equal(t, 250*time.Millisecond, got[1].Elapsed)
	assert.Equal(t, 4, got[1].Nodes)
	assert.Empty(t, got[1].Error)
	assert.True(t, ok.StartedAt.Equal(got[1].StartedAt))
}

func TestRecordDuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, record("dup", repository.OutcomeSuccess)))
	assert.Error(t, repo.Record(ctx, record("dup", repository.OutcomeSuccess)))
}

func TestListLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, record(fmt.Sprintf("f%d", i), repository.OutcomeSuccess)))
	}

	got, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f4", got[0].ID)
	assert.Equal(t, "f3", got[1].ID)
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, record(fmt.Sprintf("f%d", i), repository.OutcomeSuccess)))
	}

	removed, err := repo.Prune(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	got, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "f4", got[0].ID)
	assert.Equal(t, "f2", got[2].ID)
}

func TestNilNamespaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := record("empty", repository.OutcomeEmpty)
	rec.Namespaces = nil
	require.NoError(t, repo.Record(ctx, rec))

	got, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Namespaces)
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Record(context.Background(), record("persisted", repository.OutcomeSuccess)))
	require.NoError(t, repo.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].ID)
}
