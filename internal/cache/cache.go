// Package cache persists paragraph-merge results in SQLite so reruns over
// the same document do not pay for the same batches twice.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat sorts lexically, unlike RFC3339Nano which trims zeros.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed merge.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the cache database at path. The parent directory is
// created if it doesn't exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// Merge goroutines share the store; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS merges (
		key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		paragraphs TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_merges_created_at ON merges(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the cached paragraphs for key.
func (s *Store) Get(ctx context.Context, key string) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT paragraphs FROM merges WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	var paras []string
	if err := json.Unmarshal([]byte(raw), &paras); err != nil {
		return nil, false, fmt.Errorf("decode cached paragraphs: %w", err)
	}
	return paras, true, nil
}

// Put stores paragraphs under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key, provider string, paragraphs []string) error {
	raw, err := json.Marshal(paragraphs)
	if err != nil {
		return fmt.Errorf("encode paragraphs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO merges (key, provider, paragraphs, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		provider = excluded.provider,
		paragraphs = excluded.paragraphs,
		created_at = excluded.created_at
	`, key, provider, string(raw), s.now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes entries older than maxAge and returns how many
// were removed.
func (s *Store) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `DELETE FROM merges WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached batches.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM merges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
