package snapshot

import (
	"os"
	"time"
)

// PruneOlderThan deletes snapshot files dated before now minus days. With
// dryRun the files are only reported.
func (s *Store) PruneOlderThan(now time.Time, days int, category string, dryRun bool) ([]FileInfo, error) {
	candidates, err := s.candidates(category)
	if err != nil {
		return nil, err
	}
	y, m, d := now.UTC().AddDate(0, 0, -days).Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var removed []FileInfo
	for _, c := range candidates {
		if !c.date.Before(cutoff) {
			continue
		}
		info := c.info()
		if err := s.remove(c, dryRun); err != nil {
			return removed, err
		}
		removed = append(removed, info)
	}
	return removed, nil
}

// PruneKeepRecent keeps the keep most recent snapshots per category and
// deletes the rest. With skipEmpty, empty snapshots are neither counted nor
// deleted.
func (s *Store) PruneKeepRecent(keep int, category string, skipEmpty, dryRun bool) ([]FileInfo, error) {
	candidates, err := s.candidates(category)
	if err != nil {
		return nil, err
	}
	kept := map[string]int{}
	var removed []FileInfo
	for _, c := range candidates {
		if skipEmpty && isEmptyFile(c.path) {
			continue
		}
		if kept[c.category] < keep {
			kept[c.category]++
			continue
		}
		info := c.info()
		if err := s.remove(c, dryRun); err != nil {
			return removed, err
		}
		removed = append(removed, info)
	}
	return removed, nil
}

func (s *Store) remove(c candidate, dryRun bool) error {
	if dryRun {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
