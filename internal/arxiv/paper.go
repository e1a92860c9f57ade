package arxiv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Paper is one announced submission as stored in a daily snapshot file.
type Paper struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Authors        string     `json:"authors"`
	Abstract       string     `json:"abstract"`
	PrimarySubject string     `json:"primary_subject"`
	Label          string     `json:"label"`
	AbsURL         string     `json:"abs_url"`
	PDFURL         string     `json:"pdf_url"`
	HTMLURL        string     `json:"html_url"`
	Published      *time.Time `json:"published,omitempty"`
}

// Link returns the abstract page for the paper.
func (p Paper) Link() string {
	if p.AbsURL != "" {
		return p.AbsURL
	}
	if p.ID == "" {
		return ""
	}
	return "https://arxiv.org/abs/" + p.ID
}

// Stats mirrors the announcement counters reported by the daily feed.
type Stats struct {
	NewSubmissions int `json:"new_submissions"`
	CrossLists     int `json:"cross_lists"`
	Replacements   int `json:"replacements"`
	Total          int `json:"total"`
}

// Snapshot is the set of papers announced for one category on one feed date.
type Snapshot struct {
	Category    string  `json:"category"`
	FetchedAt   string  `json:"fetched_at"`
	FeedUpdated string  `json:"feed_updated"`
	Stats       Stats   `json:"stats"`
	Papers      []Paper `json:"papers"`

	// Date comes from the file name, never from the payload.
	Date time.Time `json:"-"`
}

// Empty reports whether the snapshot holds no papers.
func (s Snapshot) Empty() bool {
	return len(s.Papers) == 0
}

const dateLayout = "2006-01-02"

var snapshotNameRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_(.+)\.json$`)

// CategoryFileKey converts a category into its file name form ("cs.LG" -> "cs_LG").
func CategoryFileKey(category string) string {
	return strings.ReplaceAll(strings.TrimSpace(category), ".", "_")
}

// SnapshotFileName returns the canonical file name for a (date, category) pair.
func SnapshotFileName(date time.Time, category string) string {
	return fmt.Sprintf("%s_%s.json", date.Format(dateLayout), CategoryFileKey(category))
}

// ParseSnapshotName decodes a snapshot file name without opening the file.
func ParseSnapshotName(name string) (time.Time, string, bool) {
	matches := snapshotNameRe.FindStringSubmatch(filepath.Base(name))
	if len(matches) != 3 {
		return time.Time{}, "", false
	}
	date, err := time.Parse(dateLayout, matches[1])
	if err != nil {
		return time.Time{}, "", false
	}
	category := strings.ReplaceAll(matches[2], "_", ".")
	if category == "" {
		return time.Time{}, "", false
	}
	return date, category, true
}

// ReadSnapshotFile loads and decodes one snapshot. The snapshot date is taken
// from the file name.
func ReadSnapshotFile(path string) (Snapshot, error) {
	date, category, ok := ParseSnapshotName(path)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot %s: unrecognised file name", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", filepath.Base(path), err)
	}
	if snapshot.Category == "" {
		snapshot.Category = category
	}
	snapshot.Date = date
	return snapshot, nil
}

// WriteSnapshotFile stores the snapshot under dir using its canonical name and
// returns the written path. The file is replaced atomically.
func WriteSnapshotFile(dir string, snapshot Snapshot) (string, error) {
	if snapshot.Date.IsZero() {
		return "", fmt.Errorf("snapshot for %s has no date", snapshot.Category)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if snapshot.Papers == nil {
		snapshot.Papers = []Paper{}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, SnapshotFileName(snapshot.Date, snapshot.Category))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}
