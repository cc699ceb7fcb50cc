package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgplatform "github.com/complyops/autopilot/internal/platform/postgres"
	"github.com/complyops/autopilot/internal/scan"
	"github.com/complyops/autopilot/internal/scan/store"
	"github.com/complyops/autopilot/internal/scan/store/pgmigrations"
)

// newPGStore creates a PGStore backed by a real PostgreSQL instance.
// Skips when POSTGRES_URL is not set.
func newPGStore(t *testing.T) *store.PGStore {
	t.Helper()
	pgURL := os.Getenv("POSTGRES_URL")
	if pgURL == "" {
		t.Skip("POSTGRES_URL not set, skipping Postgres integration tests")
	}
	pool, err := pgplatform.New(context.Background(), pgURL, pgmigrations.FS)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupPGStore(t, pool)
		pool.Close()
	})
	return store.NewPGStore(pool)
}

func cleanupPGStore(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `DELETE FROM scans;`)
	require.NoError(t, err)
}

func TestPGStore_SaveGetRoundtrip(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	job := baseScan("ab12cd34", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, job))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ProjectPath, got.ProjectPath)
	assert.Equal(t, job.Frameworks, got.Frameworks)
	assert.Equal(t, scan.StatusRunning, got.Status)
	assert.Nil(t, got.Summary)
	assert.Nil(t, got.Result)
}

func TestPGStore_UpsertTerminalState(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	job := baseScan("ab12cd34", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, job))

	completedAt := job.StartedAt.Add(90 * time.Second)
	job.Status = scan.StatusCompleted
	job.CompletedAt = &completedAt
	job.Summary = &scan.Summary{DefaultBranch: "main", FilesFetched: 7, MergeRequests: 3}
	require.NoError(t, s.Save(ctx, job))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, scan.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 7, got.Summary.FilesFetched)
}

func TestPGStore_GetUnknownReturnsNil(t *testing.T) {
	s := newPGStore(t)

	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPGStore_ListNewestFirst(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, baseScan("older123", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))))
	require.NoError(t, s.Save(ctx, baseScan("newer456", time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))))

	scans, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "newer456", scans[0].ID)
}
