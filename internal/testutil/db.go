// Package testutil provides fixtures for tests that need a populated
// registry store.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/authprx/internal/infrastructure/sqlite"
)

// NewTestDB opens a migrated registry database under a temp dir.
// It is closed when the test ends.
func NewTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), sqliteFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewTestRepository is NewTestDB followed by ApiRepository.
func NewTestRepository(t *testing.T) *sqlite.ApiRepository {
	t.Helper()
	return NewTestDB(t).ApiRepository()
}

const sqliteFile = "registry.db"
