package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/csheth/ragtoxiv/internal/arxiv"
	"github.com/csheth/ragtoxiv/internal/snapshot"
)

func seed(t *testing.T, dir string, dates ...string) {
	t.Helper()
	for _, date := range dates {
		day, err := time.Parse("2006-01-02", date)
		require.NoError(t, err)
		_, err = arxiv.WriteSnapshotFile(dir, arxiv.Snapshot{
			Category: "cs.LG",
			Date:     day,
			Papers:   []arxiv.Paper{{ID: "2501.00001", Title: "T"}},
		})
		require.NoError(t, err)
	}
}

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPruneAppliesBothRules(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "2025-01-01", "2025-01-05", "2025-01-06", "2025-01-07")

	s := New(snapshot.NewStore(dir), Retention{Keep: 2, MaxAgeDays: 5}, nil)
	s.now = func() time.Time { return time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC) }

	removed, err := s.Prune()
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.ElementsMatch(t, []string{"2025-01-06_cs_LG.json", "2025-01-07_cs_LG.json"}, remaining(t, dir))
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := New(snapshot.NewStore(t.TempDir()), Retention{Keep: 1}, nil)
	assert.Error(t, s.Schedule("every tuesday"))
	assert.NoError(t, s.Schedule("@daily"))
	assert.NoError(t, s.Schedule("0 3 * * *"), "rescheduling replaces the entry")
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := filepath.Join(t.TempDir(), "data")
	s := New(snapshot.NewStore(dir), Retention{Keep: 1}, nil)
	require.NoError(t, s.Schedule("@every 1h"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
