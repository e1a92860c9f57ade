package arxiv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"abs url", "https://arxiv.org/abs/2101.00001", "2101.00001"},
		{"pdf url", "https://arxiv.org/pdf/2205.12345.pdf", "2205.12345"},
		{"versioned abs url", "https://arxiv.org/abs/2512.21450v2", "2512.21450"},
		{"oai guid", "oai:arXiv.org:2512.21450v1", "2512.21450"},
		{"prefixed", "arXiv:2101.00001", "2101.00001"},
		{"bare", "2308.01234v2", "2308.01234"},
		{"invalid", "https://example.com/foo", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractIdentifier(tt.in); got != tt.want {
				t.Fatalf("extractIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstSentence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"We show X. We then show Y.", "We show X."},
		{"Does it work? Yes.", "Does it work?"},
		{"Accuracy rises to 3.5 points. More text.", "Accuracy rises to 3.5 points."},
		{"No terminal punctuation here", "No terminal punctuation here"},
		{"Ends with a period.", "Ends with a period."},
		{"Line break ends it.\nSecond line.", "Line break ends it."},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstSentence(tt.in), "input %q", tt.in)
	}
}

func TestSnapshotNameRoundTrip(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	name := SnapshotFileName(date, "cs.LG")
	assert.Equal(t, "2025-01-07_cs_LG.json", name)

	gotDate, gotCategory, ok := ParseSnapshotName("/data/" + name)
	require.True(t, ok)
	assert.True(t, gotDate.Equal(date))
	assert.Equal(t, "cs.LG", gotCategory)

	_, category, ok := ParseSnapshotName("2025-01-07_astro-ph_GA.json")
	require.True(t, ok)
	assert.Equal(t, "astro-ph.GA", category)

	for _, bad := range []string{"notes.json", "2025-13-40_cs_LG.json", "2025-01-07_cs_LG.txt", "2025-01-07_.json"} {
		_, _, ok := ParseSnapshotName(bad)
		assert.False(t, ok, bad)
	}
}

func TestWriteAndReadSnapshotFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	snapshot := Snapshot{
		Category:    "math.CO",
		FeedUpdated: "Tue, 07 Jan 2025 00:00:00 -0500",
		Date:        time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		Stats:       Stats{NewSubmissions: 1, Total: 1},
		Papers: []Paper{{
			ID:       "2501.00001",
			Title:    "Counting Trees",
			Abstract: "We count trees. Then forests.",
		}},
	}
	path, err := WriteSnapshotFile(dir, snapshot)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-01-07_math_CO.json"), path)

	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, "math.CO", got.Category)
	assert.True(t, got.Date.Equal(snapshot.Date))
	require.Len(t, got.Papers, 1)
	assert.Equal(t, "https://arxiv.org/abs/2501.00001", got.Papers[0].Link())
}

func TestReadSnapshotFileRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "2025-01-07_cs_LG.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := ReadSnapshotFile(path)
	require.Error(t, err)
}

func TestReadSnapshotFileFillsCategoryFromName(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "2025-01-07_cs_LG.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"papers":[]}`), 0o644))
	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cs.LG", got.Category)
	assert.True(t, got.Empty())
}
