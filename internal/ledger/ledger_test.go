package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opener func(t *testing.T, path string) Ledger

func engines() map[string]struct {
	file string
	open opener
} {
	return map[string]struct {
		file string
		open opener
	}{
		"json": {
			file: "processed_notifications.json",
			open: func(t *testing.T, path string) Ledger {
				l, err := OpenFile(path)
				require.NoError(t, err)
				return l
			},
		},
		"sqlite": {
			file: "ledger.db",
			open: func(t *testing.T, path string) Ledger {
				l, err := OpenSQLite(context.Background(), path)
				require.NoError(t, err)
				return l
			},
		},
	}
}

func TestLedgerContract(t *testing.T) {
	for name, engine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), engine.file)

			l := engine.open(t, path)
			assert.False(t, l.IsProcessed("n1"))
			assert.True(t, l.Claim("n1"))
			assert.False(t, l.Claim("n1"), "second claim must fail while held")

			require.NoError(t, l.Commit(ctx, "n1", NewMarker(OutcomeReplied)))
			assert.True(t, l.IsProcessed("n1"))
			assert.False(t, l.Claim("n1"), "committed ids cannot be claimed")
			assert.Equal(t, 1, l.Len())

			require.NoError(t, l.Commit(ctx, "n1", NewMarker(OutcomeFallback)), "commit is idempotent")
			assert.Equal(t, 1, l.Len())
			require.NoError(t, l.Close())

			reopened := engine.open(t, path)
			defer reopened.Close()
			assert.True(t, reopened.IsProcessed("n1"))
			assert.Equal(t, 1, reopened.Len())
		})
	}
}

func TestClaimWithoutCommitIsNotDurable(t *testing.T) {
	for name, engine := range engines() {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), engine.file)

			l := engine.open(t, path)
			require.True(t, l.Claim("n2"))
			require.NoError(t, l.Close())

			reopened := engine.open(t, path)
			defer reopened.Close()
			assert.False(t, reopened.IsProcessed("n2"))
			assert.True(t, reopened.Claim("n2"))
		})
	}
}

func TestReleaseAllowsReclaim(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	require.True(t, l.Claim("n3"))
	l.Release("n3")
	assert.False(t, l.IsProcessed("n3"))
	assert.True(t, l.Claim("n3"))
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Claim("shared") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOpenFileReadsLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_notifications.json")
	require.NoError(t, os.WriteFile(path, []byte(`["101", 202]`), 0o644))

	l, err := OpenFile(path)
	require.NoError(t, err)
	assert.True(t, l.IsProcessed("101"))
	assert.True(t, l.IsProcessed("202"))
	assert.Equal(t, 2, l.Len())

	require.NoError(t, l.Commit(context.Background(), "303", NewMarker(OutcomeHelp)))
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Len())
}

func TestOpenFileRejectsCorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_notifications.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestCommitFailureLeavesIDUnprocessed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// The parent of the ledger path is a regular file, so every flush fails.
	l, err := OpenFile(filepath.Join(blocker, "ledger.json"))
	require.NoError(t, err)

	require.True(t, l.Claim("n4"))
	err = l.Commit(context.Background(), "n4", NewMarker(OutcomeReplied))
	require.Error(t, err)
	assert.False(t, l.IsProcessed("n4"))
	assert.Equal(t, 0, l.Len())
}

func TestCommitRejectsEmptyID(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	assert.Error(t, l.Commit(context.Background(), "", NewMarker(OutcomeReplied)))
}
