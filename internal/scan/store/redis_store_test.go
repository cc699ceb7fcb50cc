package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/autopilot/internal/scan"
	"github.com/complyops/autopilot/internal/scan/store"
)

// newRedisStore starts a miniredis server and returns a RedisStore backed by
// it. Both are torn down when the test ends.
func newRedisStore(t *testing.T) *store.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return store.NewRedisStore(rdb)
}

func baseScan(id string, startedAt time.Time) scan.Scan {
	return scan.Scan{
		ID:          id,
		ProjectPath: "acme/payments",
		Frameworks:  []string{"soc2", "gdpr"},
		Status:      scan.StatusRunning,
		StartedAt:   startedAt,
	}
}

func TestRedisStore_SaveGetRoundtrip(t *testing.T) {
	s := newRedisStore(t)
	job := baseScan("ab12cd34", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))

	require.NoError(t, s.Save(context.Background(), job))

	got, err := s.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job, *got)
}

func TestRedisStore_GetUnknownReturnsNil(t *testing.T) {
	s := newRedisStore(t)

	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_SaveUpdatesTerminalState(t *testing.T) {
	s := newRedisStore(t)
	job := baseScan("ab12cd34", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(context.Background(), job))

	completedAt := job.StartedAt.Add(time.Minute)
	job.Status = scan.StatusCompleted
	job.CompletedAt = &completedAt
	job.Summary = &scan.Summary{DefaultBranch: "main", FilesFetched: 12, BranchProtected: true}
	require.NoError(t, s.Save(context.Background(), job))

	got, err := s.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, scan.StatusCompleted, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 12, got.Summary.FilesFetched)
}

func TestRedisStore_ListNewestFirst(t *testing.T) {
	s := newRedisStore(t)
	older := baseScan("older123", time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	newer := baseScan("newer456", time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(context.Background(), older))
	require.NoError(t, s.Save(context.Background(), newer))

	scans, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "newer456", scans[0].ID)
	assert.Equal(t, "older123", scans[1].ID)
}
