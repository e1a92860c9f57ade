package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileLedger keeps the processed set in a single JSON file that is rewritten
// atomically on every commit.
type FileLedger struct {
	*core
	path string
}

// OpenFile loads path, creating nothing until the first commit. Besides its
// own object format it reads a plain JSON array of ids.
func OpenFile(path string) (*FileLedger, error) {
	committed, err := loadEntries(path)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", path, err)
	}
	l := &FileLedger{path: path}
	l.core = newCore(committed, l.persist)
	return l, nil
}

// Path returns the backing file.
func (l *FileLedger) Path() string {
	return l.path
}

// Close is a no-op; every commit is already on disk.
func (l *FileLedger) Close() error {
	return nil
}

func (l *FileLedger) persist(_ context.Context, _ string, _ Marker, all map[string]Marker) error {
	return writeEntries(l.path, all)
}

func loadEntries(path string) (map[string]Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Marker{}, nil
		}
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return map[string]Marker{}, nil
	}
	if data[0] == '[' {
		var ids []json.RawMessage
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, err
		}
		entries := make(map[string]Marker, len(ids))
		for _, raw := range ids {
			id, err := decodeID(raw)
			if err != nil {
				return nil, err
			}
			entries[id] = Marker{Outcome: OutcomeLegacy}
		}
		return entries, nil
	}
	entries := map[string]Marker{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// decodeID accepts ids stored as strings or numbers.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported ledger id %s", string(raw))
	}
	return n.String(), nil
}

func writeEntries(path string, entries map[string]Marker) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
