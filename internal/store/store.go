// Package store implements the SQLite persistence layer: schema lifecycle,
// per-worker sessions, and transactional action recording.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the database handle and schema. Workers never use the pooled
// handle directly; each obtains a dedicated Session.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Initialize creates the schema and seeds one platform_stats row per known
// platform. If forceRecreate is set, the content tables are dropped first.
// Dropping is irreversible and must only happen at fresh-deployment
// boundaries, never while sessions are open.
func Initialize(path string, forceRecreate bool) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}

	if forceRecreate {
		slog.Warn("dropping and recreating content tables", "path", path)
		for _, table := range contentTables {
			if _, err := s.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				s.Close()
				return nil, fmt.Errorf("drop table %s: %w", table, err)
			}
		}
		if _, err := s.db.Exec(Schema); err != nil {
			s.Close()
			return nil, fmt.Errorf("recreate schema: %w", err)
		}
	}

	now := encodeTime(time.Now())
	for _, platform := range KnownPlatforms {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO platform_stats
			 (platform, total_interactions, total_posts, total_comments, last_activity)
			 VALUES (?, 0, 0, 0, ?)`, platform, now); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed platform_stats for %s: %w", platform, err)
		}
	}
	slog.Info("database initialized", "path", path, "force_recreate", forceRecreate)
	return s, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NewSession acquires a dedicated connection for one worker. The caller owns
// the session and must Close it; sessions are not safe for concurrent use.
func (s *Store) NewSession(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Timestamps round-trip through ISO-8601 text so that values written by any
// component parse identically everywhere.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
