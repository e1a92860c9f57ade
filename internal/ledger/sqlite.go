package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLedger stores processed ids in an SQLite table.
type SQLiteLedger struct {
	*core
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at path and loads every
// processed id into memory.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	l := &SQLiteLedger{conn: conn}
	if err := l.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	committed, err := l.loadAll(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	l.core = newCore(committed, l.persist)
	return l, nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.conn.Close()
}

func (l *SQLiteLedger) initSchema(ctx context.Context) error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = FULL;

	CREATE TABLE IF NOT EXISTS processed_notifications (
		id TEXT PRIMARY KEY,
		processed_at DATETIME NOT NULL,
		outcome TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := l.conn.ExecContext(ctx, schema)
	return err
}

func (l *SQLiteLedger) loadAll(ctx context.Context) (map[string]Marker, error) {
	rows, err := l.conn.QueryContext(ctx, `SELECT id, processed_at, outcome FROM processed_notifications`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	committed := map[string]Marker{}
	for rows.Next() {
		var (
			id      string
			stamp   string
			outcome string
		)
		if err := rows.Scan(&id, &stamp, &outcome); err != nil {
			return nil, err
		}
		marker := Marker{Outcome: outcome}
		if parsed, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			marker.ProcessedAt = parsed
		}
		committed[id] = marker
	}
	return committed, rows.Err()
}

func (l *SQLiteLedger) persist(ctx context.Context, id string, marker Marker, _ map[string]Marker) error {
	_, err := l.conn.ExecContext(ctx, `
		INSERT INTO processed_notifications (id, processed_at, outcome)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, marker.ProcessedAt.UTC().Format(time.RFC3339Nano), marker.Outcome)
	return err
}
