package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultJournalMode = "wal"
	defaultBusyTimeout = 3 * time.Second
)

// journalModes is the value set PRAGMA journal_mode accepts.
var journalModes = map[string]bool{
	"delete":   true,
	"truncate": true,
	"persist":  true,
	"memory":   true,
	"wal":      true,
	"off":      true,
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	date  TEXT NOT NULL
)`

// Options configures Open. The zero value of every field except Path has a
// usable default.
type Options struct {
	// Path is the database file location. The parent directory is created
	// on open when missing.
	Path string
	// JournalMode selects the SQLite journal mode. Empty means wal.
	JournalMode string
	// BusyTimeout bounds how long a statement waits on a contended lock
	// before failing instead of blocking. Zero means 3s.
	BusyTimeout time.Duration
}

type Store struct {
	db   *sql.DB
	path string

	Users UserRepository
}

// Open prepares the database file, applies the connection settings, and
// ensures the users table exists. A returned error is fatal to startup.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}

	mode := strings.ToLower(opts.JournalMode)
	if mode == "" {
		mode = defaultJournalMode
	}
	if !journalModes[mode] {
		return nil, fmt.Errorf("open storage: unknown journal mode %q", opts.JournalMode)
	}
	wait := opts.BusyTimeout
	if wait <= 0 {
		wait = defaultBusyTimeout
	}

	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open storage: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path, mode, wait))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db, path: path}
	store.Users = &userRepository{}
	return store, nil
}

// dsn builds the driver DSN. The pragmas ride the DSN so every pooled
// connection carries them, not just whichever one served a one-off Exec.
// journal_mode is a database-level property but harmless to repeat.
func dsn(path, journalMode string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+strconv.FormatInt(busyTimeout.Milliseconds(), 10)+")")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode("+journalMode+")")
	return "file:" + path + "?" + q.Encode()
}

// initSchema creates the users table when absent. Safe to run on every
// start: existing rows are never touched.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(createUsersTable); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Acquire hands out a dedicated connection for the duration of one request.
// The caller owns it and must Close it on every exit path.
func (s *Store) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", classify(err))
	}
	return conn, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Path returns the absolute database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// EngineVersion reports the SQLite library version over conn.
func EngineVersion(ctx context.Context, conn Conn) (string, error) {
	var version string
	if err := conn.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&version); err != nil {
		return "", fmt.Errorf("engine version: %w", err)
	}
	return version, nil
}
