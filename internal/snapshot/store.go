// Package snapshot reads the dated per-category paper snapshots kept on disk.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/csheth/ragtoxiv/internal/arxiv"
)

// ErrStorageUnavailable is returned when the snapshot directory cannot be read.
var ErrStorageUnavailable = errors.New("snapshot storage unavailable")

// Store is a read-only view over a directory of snapshot files.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Selection is the outcome of LoadCategory: snapshots newest first plus the
// files that had to be skipped because they could not be read or decoded.
type Selection struct {
	Category     string
	Snapshots    []arxiv.Snapshot
	Skipped      int
	SkippedFiles []string
}

// PaperCount returns the number of papers across all selected snapshots.
func (s Selection) PaperCount() int {
	total := 0
	for _, snapshot := range s.Snapshots {
		total += len(snapshot.Papers)
	}
	return total
}

// candidate is a snapshot file identified from its name alone.
type candidate struct {
	name     string
	path     string
	date     time.Time
	category string
	size     int64
}

func (s *Store) candidates(category string) ([]candidate, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var result []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, cat, ok := arxiv.ParseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		if category != "" && cat != category {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		result = append(result, candidate{
			name:     entry.Name(),
			path:     filepath.Join(s.dir, entry.Name()),
			date:     date,
			category: cat,
			size:     size,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].date.Equal(result[j].date) {
			return result[i].name < result[j].name
		}
		return result[i].date.After(result[j].date)
	})
	return result, nil
}

// LoadCategory returns up to maxFiles snapshots for category ordered by date,
// newest first. With skipEmpty, snapshots without papers are passed over and
// do not count toward maxFiles. Unreadable or malformed files are skipped and
// reported in the selection. A category without files yields an empty
// selection and no error.
func (s *Store) LoadCategory(category string, maxFiles int, skipEmpty bool) (Selection, error) {
	selection := Selection{Category: category}
	candidates, err := s.candidates(category)
	if err != nil {
		return selection, err
	}
	for _, c := range candidates {
		if len(selection.Snapshots) >= maxFiles {
			break
		}
		snapshot, err := arxiv.ReadSnapshotFile(c.path)
		if err != nil {
			selection.Skipped++
			selection.SkippedFiles = append(selection.SkippedFiles, c.name)
			continue
		}
		if skipEmpty && snapshot.Empty() {
			continue
		}
		selection.Snapshots = append(selection.Snapshots, snapshot)
	}
	return selection, nil
}

// Categories lists the categories that have at least one snapshot file.
func (s *Store) Categories() ([]string, error) {
	candidates, err := s.candidates("")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var categories []string
	for _, c := range candidates {
		if seen[c.category] {
			continue
		}
		seen[c.category] = true
		categories = append(categories, c.category)
	}
	sort.Strings(categories)
	return categories, nil
}

// FileInfo describes one snapshot file for listing and retention.
type FileInfo struct {
	Name     string
	Path     string
	Category string
	Date     time.Time
	Size     int64
	Empty    bool
}

// List returns snapshot files sorted by name, optionally for one category.
func (s *Store) List(category string) ([]FileInfo, error) {
	candidates, err := s.candidates(category)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(candidates))
	for _, c := range candidates {
		files = append(files, c.info())
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (c candidate) info() FileInfo {
	return FileInfo{
		Name:     c.name,
		Path:     c.path,
		Category: c.category,
		Date:     c.date,
		Size:     c.size,
		Empty:    isEmptyFile(c.path),
	}
}

// isEmptyFile treats unreadable files as non-empty so retention never
// mistakes a corrupt file for an intentionally empty day.
func isEmptyFile(path string) bool {
	snapshot, err := arxiv.ReadSnapshotFile(path)
	if err != nil {
		return false
	}
	return snapshot.Empty()
}
