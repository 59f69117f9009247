package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/authprx/internal/registry/domain"
)

// Builder accumulates records and writes them through a repository.
type Builder struct {
	t       *testing.T
	repo    domain.ApiRepository
	records []recordData
}

// NewBuilder creates a builder for repo.
func NewBuilder(t *testing.T, repo domain.ApiRepository) *Builder {
	t.Helper()
	return &Builder{t: t, repo: repo}
}

// WithApi adds a record built from the default Api and opts.
func (b *Builder) WithApi(name string, opts ...ApiOption) *Builder {
	api := domain.Default()
	for _, opt := range opts {
		opt(&api)
	}
	b.records = append(b.records, recordData{name: name, api: api})
	return b
}

// WithRawRecord stores data under name without encoding it, for
// exercising decode failures.
func (b *Builder) WithRawRecord(name string, data []byte) *Builder {
	b.records = append(b.records, recordData{name: name, raw: data})
	return b
}

// Build inserts every record and flushes. Each name must be free.
func (b *Builder) Build() {
	b.t.Helper()
	ctx := context.Background()
	for _, rec := range b.records {
		data := rec.raw
		if data == nil {
			var err error
			data, err = domain.Encode(rec.api)
			require.NoError(b.t, err, "encoding %s", rec.name)
		}
		inserted, err := b.repo.InsertIfAbsent(ctx, rec.name, data)
		require.NoError(b.t, err)
		require.True(b.t, inserted, "name %s already stored", rec.name)
	}
	require.NoError(b.t, b.repo.Flush(ctx))
}
