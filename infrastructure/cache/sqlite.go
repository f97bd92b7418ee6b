package cache

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists cache entries in a SQLite database so they survive restarts.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the cache database at path.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key BLOB PRIMARY KEY,
		value BLOB NOT NULL,
		expires INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Get implements ports.Cache.
func (s *SQLiteStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	var expires int64
	err := s.db.QueryRowContext(ctx, "SELECT value, expires FROM cache WHERE key = ?", key).Scan(&value, &expires)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}
	if expires != 0 && s.now().UnixNano() >= expires {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ? AND expires = ?", key, expires); err != nil {
			return nil, false, fmt.Errorf("purging expired entry: %w", err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements ports.Cache.
func (s *SQLiteStore) Set(ctx context.Context, key, value []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = s.now().Add(ttl).UnixNano()
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, value, expires) VALUES (?, ?, ?)",
		key, value, expires,
	)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE expires != 0 AND expires <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
