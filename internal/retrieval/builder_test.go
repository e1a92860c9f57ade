package retrieval

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/ragtoxiv/internal/arxiv"
)

func snapshotOf(date string, papers ...arxiv.Paper) arxiv.Snapshot {
	parsed, _ := time.Parse("2006-01-02", date)
	return arxiv.Snapshot{Category: "cs.LG", Date: parsed, Papers: papers}
}

func samplePaper() arxiv.Paper {
	return arxiv.Paper{ID: "2501.01234", Title: "Sparse Mixtures", Abstract: "We show X. We then show Y."}
}

func TestBuildModes(t *testing.T) {
	t.Parallel()
	snapshots := []arxiv.Snapshot{snapshotOf("2025-01-07", samplePaper())}
	builder := NewBuilder(0)

	tests := []struct {
		mode      Mode
		contains  []string
		forbidden []string
	}{
		{ModeTitle, []string{"[2501.01234] Sparse Mixtures", "https://arxiv.org/abs/2501.01234"}, []string{"We show X.", "We then show Y."}},
		{ModeFirstSentence, []string{"Sparse Mixtures", "We show X."}, []string{"We then show Y."}},
		{ModeFullAbstract, []string{"Sparse Mixtures", "We show X.", "We then show Y."}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()
			pkg := builder.Build(snapshots, tt.mode)
			assert.Equal(t, 1, pkg.Papers)
			assert.False(t, pkg.Truncated)
			for _, want := range tt.contains {
				assert.Contains(t, pkg.Text, want)
			}
			for _, unwanted := range tt.forbidden {
				assert.NotContains(t, pkg.Text, unwanted)
			}
		})
	}
}

func TestBuildPreservesSnapshotOrderWithoutDedup(t *testing.T) {
	t.Parallel()
	a := arxiv.Paper{ID: "1", Title: "Alpha"}
	b := arxiv.Paper{ID: "2", Title: "Beta"}
	c := arxiv.Paper{ID: "3", Title: "Gamma"}
	snapshots := []arxiv.Snapshot{
		snapshotOf("2025-01-07", b, a),
		snapshotOf("2025-01-06", c, a),
	}
	pkg := NewBuilder(0).Build(snapshots, ModeTitle)
	lines := strings.Split(pkg.Text, "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "[2] Beta"))
	assert.True(t, strings.HasPrefix(lines[1], "[1] Alpha"))
	assert.True(t, strings.HasPrefix(lines[2], "[3] Gamma"))
	assert.True(t, strings.HasPrefix(lines[3], "[1] Alpha"))
	assert.Equal(t, 4, pkg.Papers)
}

func TestBuildSeparatesAbstractEntriesWithBlankLine(t *testing.T) {
	t.Parallel()
	snapshots := []arxiv.Snapshot{snapshotOf("2025-01-07", samplePaper(), samplePaper())}
	pkg := NewBuilder(0).Build(snapshots, ModeFirstSentence)
	assert.Equal(t, 2, strings.Count(pkg.Text, "Abstract: "))
	assert.Contains(t, pkg.Text, "We show X.\n\n[2501.01234]")
}

func TestBuildTruncatesAtPaperBoundary(t *testing.T) {
	t.Parallel()
	var papers []arxiv.Paper
	for i := 0; i < 20; i++ {
		papers = append(papers, arxiv.Paper{
			ID:       fmt.Sprintf("2501.%05d", i),
			Title:    fmt.Sprintf("Paper number %d", i),
			Abstract: strings.Repeat("Long abstract sentence. ", 5),
		})
	}
	snapshots := []arxiv.Snapshot{snapshotOf("2025-01-07", papers...)}
	full := NewBuilder(0).Build(snapshots, ModeFullAbstract)
	require.False(t, full.Truncated)

	budget := len([]rune(full.Text)) / 3
	pkg := NewBuilder(budget).Build(snapshots, ModeFullAbstract)
	require.True(t, pkg.Truncated)
	assert.LessOrEqual(t, len([]rune(pkg.Text)), budget)
	assert.Equal(t, 20, pkg.Papers+pkg.Omitted)
	assert.True(t, strings.HasSuffix(pkg.Text, fmt.Sprintf("[... %d more papers omitted]", pkg.Omitted)))

	entries := strings.Split(pkg.Text, "\n\n")
	require.Len(t, entries, pkg.Papers+1)
	for i, entry := range entries[:pkg.Papers] {
		assert.Equal(t, formatEntry(papers[i], ModeFullAbstract), entry)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	t.Parallel()
	pkg := NewBuilder(10).Build(nil, ModeTitle)
	assert.Equal(t, Package{}, pkg)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	mode, err := ParseMode("first-sentence")
	require.NoError(t, err)
	assert.Equal(t, ModeFirstSentence, mode)

	mode, err = ParseMode(" Full_Abstract ")
	require.NoError(t, err)
	assert.Equal(t, ModeFullAbstract, mode)

	_, err = ParseMode("summary")
	assert.True(t, errors.Is(err, ErrUnknownMode))
}
