// Package sqlitestore is a SQLite-backed Backend.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/idilsaglam/tada/internal/store"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// PollInterval is how often Watch checks for commits by other connections.
var PollInterval = 500 * time.Millisecond

// Store persists raw key/value strings in one table.
type Store struct {
	sqlDB *sql.DB

	mu   sync.Mutex
	seen map[string]string // last content known to this process, per key
}

var (
	_ store.Backend = (*Store)(nil)
	_ store.Watcher = (*Store)(nil)
)

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &Store{sqlDB: sqlDB}
	seen, err := s.loadAll(context.Background())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.seen = seen
	return s, nil
}

func (s *Store) loadAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("load kv: %w", err)
	}
	defer rows.Close()
	data := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan kv: %w", err)
		}
		data[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load kv: %w", err)
	}
	return data, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(key string) (string, bool, error) {
	if s == nil || s.sqlDB == nil {
		return "", false, store.ErrClosed
	}
	var value string
	err := s.sqlDB.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(key, value string) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.sqlDB.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.seen[key] = value
	return nil
}

func (s *Store) Remove(key string) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.sqlDB.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	delete(s.seen, key)
	return nil
}

// Watch polls PRAGMA data_version on a dedicated connection. The value
// changes when any other connection commits, including this process's own
// pool, so changes are diffed against what this Store wrote itself.
func (s *Store) Watch(stop <-chan struct{}, emit func(store.Event), warn func(error)) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, err := s.sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("watch connection: %w", err)
	}
	defer conn.Close()

	version, err := dataVersion(ctx, conn)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			v, err := dataVersion(ctx, conn)
			if err != nil {
				warn(err)
				continue
			}
			if v == version {
				continue
			}
			version = v
			events, err := s.diff(ctx)
			if err != nil {
				warn(err)
				continue
			}
			for _, ev := range events {
				emit(ev)
			}
		}
	}
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("data_version: %w", err)
	}
	return v, nil
}

// diff reloads the table and returns one event per key whose content moved
// away from what this process last knew.
func (s *Store) diff(ctx context.Context) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []store.Event
	for k, v := range data {
		old, had := s.seen[k]
		if had && old == v {
			continue
		}
		ev := store.Event{Key: k, NewValue: &v}
		if had {
			ev.OldValue = &old
		}
		out = append(out, ev)
	}
	for k, old := range s.seen {
		if _, ok := data[k]; !ok {
			out = append(out, store.Event{Key: k, OldValue: &old})
		}
	}
	s.seen = data
	return out, nil
}
