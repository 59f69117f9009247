package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zjrosen/authprx/internal/log"
	"github.com/zjrosen/authprx/internal/registry/domain"
)

// ApiRepository implements domain.ApiRepository on the apis table.
// Names are stored as BLOBs holding the raw UTF-8 bytes, so ordering and
// equality are plain byte comparisons.
type ApiRepository struct {
	db *DB
}

func newApiRepository(db *DB) *ApiRepository {
	return &ApiRepository{db: db}
}

// Ensure ApiRepository implements domain.ApiRepository.
var _ domain.ApiRepository = (*ApiRepository)(nil)

// Lookup returns the encoded record stored under name.
func (r *ApiRepository) Lookup(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT data FROM apis WHERE name = ?`,
		[]byte(name),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StorageError{Op: "get", Err: err}
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// InsertIfAbsent writes data under name unless the name is occupied.
// The conflict check and the write are a single statement.
func (r *ApiRepository) InsertIfAbsent(ctx context.Context, name string, data []byte) (bool, error) {
	result, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO apis (name, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		[]byte(name), data, time.Now().Unix(),
	)
	if err != nil {
		return false, &domain.StorageError{Op: "insert", Err: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, &domain.StorageError{Op: "insert", Err: err}
	}
	return rows == 1, nil
}

// Delete removes the record stored under name, if any.
func (r *ApiRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.conn.ExecContext(ctx, `DELETE FROM apis WHERE name = ?`, []byte(name)); err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// Names returns every stored name in byte order.
func (r *ApiRepository) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT name FROM apis ORDER BY name`)
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, &domain.StorageError{Op: "list", Err: err}
		}
		names = append(names, string(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return names, nil
}

// Flush checkpoints the WAL into the main database file.
// Commits are already durable under synchronous=FULL; a busy checkpoint
// leaves them in the WAL and is only logged.
func (r *ApiRepository) Flush(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	err := r.db.conn.QueryRowContext(ctx, `PRAGMA wal_checkpoint(FULL)`).
		Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return &domain.StorageError{Op: "flush", Err: err}
	}
	if busy != 0 {
		log.Warn(log.CatDB, "Checkpoint incomplete", "log_frames", logFrames, "checkpointed", checkpointed)
	}
	return nil
}

// Close closes the owning database and releases its lock.
func (r *ApiRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return &domain.StorageError{Op: "close", Err: err}
	}
	return nil
}
