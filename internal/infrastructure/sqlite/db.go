// Package sqlite provides the durable store behind the API registry.
//
// The store is a single SQLite database in WAL mode with synchronous=FULL,
// so a committed insert survives a crash. One process-level handle owns a
// database file at a time; a second NewDB on the same path fails with
// ErrLocked.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/authprx/internal/log"
)

// ErrLocked is returned when another handle already owns the database.
var ErrLocked = errors.New("database is locked by another handle")

// busyTimeoutMs bounds how long a statement waits on a SQLite lock.
const busyTimeoutMs = 5000

// DB owns the SQLite connection and the single-writer lock file.
type DB struct {
	conn      *sql.DB
	path      string
	lock      *os.File
	closeOnce sync.Once
	closeErr  error
}

// NewDB opens (or creates) the database at path, takes the exclusive lock,
// backs up an existing file, and applies pending migrations.
func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	lock, err := lockFile(path + ".lock")
	if err != nil {
		log.ErrorErr(log.CatDB, "Failed to lock database", err, "path", path)
		return nil, err
	}

	if err := backupExisting(path); err != nil {
		_ = unlockFile(lock)
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		_ = unlockFile(lock)
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Statements serialize on one connection; the lock file already
	// guarantees there is no other writer.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		_ = unlockFile(lock)
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		_ = conn.Close()
		_ = unlockFile(lock)
		return nil, err
	}

	log.Info(log.CatDB, "Opened registry database", "path", path)
	return &DB{conn: conn, path: path, lock: lock}, nil
}

func dsn(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(wal)&_pragma=synchronous(full)&_pragma=foreign_keys(1)",
		filepath.ToSlash(path), busyTimeoutMs,
	)
}

// backupExisting copies an existing database file to path.bak before
// migrations touch it. A missing file is not an error.
func backupExisting(path string) error {
	src, err := os.Open(path) //nolint:gosec // G304: path is the configured database location
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening database for backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	backupPath := path + ".bak"
	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // G304: derived from database path
	if err != nil {
		return fmt.Errorf("creating database backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("writing database backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("syncing database backup: %w", err)
	}
	log.Debug(log.CatDB, "Backed up database", "path", backupPath)
	return dst.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// ApiRepository returns the repository for Api records stored in this database.
func (db *DB) ApiRepository() *ApiRepository {
	return newApiRepository(db)
}

// OpenApiRepository opens the database at path and returns its Api
// repository. Closing the repository closes the database.
func OpenApiRepository(path string) (*ApiRepository, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return db.ApiRepository(), nil
}

// Close checkpoints the WAL, closes the connection, and releases the lock.
// It is safe to call more than once.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			log.ErrorErr(log.CatDB, "Final checkpoint failed", err, "path", db.path)
		}
		connErr := db.conn.Close()
		lockErr := unlockFile(db.lock)
		db.closeErr = errors.Join(connErr, lockErr)
		log.Debug(log.CatDB, "Closed registry database", "path", db.path)
	})
	return db.closeErr
}
