// Package sqlite implements the per-workspace relational + FTS store on top
// of the pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tanatools/supertag/internal/debug"
	"github.com/tanatools/supertag/internal/sterr"
)

// Store is one workspace's database. Reads share the pool under WAL;
// writes are serialized by RunInTransaction plus the on-disk writer lock.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// New opens (creating if needed) the store at path, applies the base schema
// and runs all pending migrations.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, classify(err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, classify(fmt.Errorf("%s: %w", p, err))
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, classify(fmt.Errorf("apply schema: %w", err))
	}

	s := &Store{
		db:   db,
		path: path,
		lock: flock.New(path + ".lock"),
	}
	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// UnderlyingDB exposes the connection pool for read layers (query planner,
// content filter) that compose their own SQL.
func (s *Store) UnderlyingDB() *sql.DB { return s.db }

// AcquireWriteLock takes the cross-process writer lock. It fails fast with
// DatabaseLocked when another process holds it.
func (s *Store) AcquireWriteLock(ctx context.Context) (func(), error) {
	locked, err := s.lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, sterr.Wrap(sterr.DatabaseLocked, err, "acquire writer lock %s", s.lock.Path())
	}
	if !locked {
		return nil, sterr.New(sterr.DatabaseLocked, "another process is writing to %s", s.path).
			WithSuggestion("wait for the running index/embed operation to finish and retry")
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			debug.Logf("unlock %s: %v", s.lock.Path(), err)
		}
	}, nil
}

// Tx is one write transaction. All statements run on a single pooled
// connection under BEGIN IMMEDIATE.
type Tx struct {
	conn *sql.Conn
	ctx  context.Context
}

// RunInTransaction executes fn inside a BEGIN IMMEDIATE transaction.
// fn returning an error (or panicking) rolls back; returning nil commits.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return classify(err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := fn(&Tx{conn: conn, ctx: ctx}); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// BulkMode relaxes per-row journaling for the duration of a large write
// transaction. Must be called outside a transaction; the returned func
// restores the normal setting.
func (s *Store) BulkMode(ctx context.Context) (func(), error) {
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous = OFF"); err != nil {
		return nil, classify(err)
	}
	return func() {
		_, _ = s.db.Exec("PRAGMA synchronous = NORMAL")
	}, nil
}

// classify maps driver errors onto the closed error-kind set.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY"):
		return sterr.Wrap(sterr.DatabaseLocked, err, "database is locked").
			WithSuggestion("another process holds the write lock; retry shortly")
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "SQLITE_CORRUPT"):
		return sterr.Wrap(sterr.DatabaseCorrupt, err, "database file is corrupt").
			WithSuggestion("delete the store and re-run `st sync index`")
	case os.IsNotExist(err):
		return sterr.Wrap(sterr.DatabaseNotFound, err, "database not found")
	default:
		return err
	}
}
