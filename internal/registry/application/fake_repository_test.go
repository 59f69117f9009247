package registry

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/zjrosen/authprx/internal/registry/domain"
)

// fakeRepository is an in-memory domain.ApiRepository with fault injection.
type fakeRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	lookups   int
	flushes   int
	closed    bool
	lookupErr error
	flushErr  error
	deleteErr error
	closeErr  error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{data: make(map[string][]byte)}
}

var _ domain.ApiRepository = (*fakeRepository)(nil)

var errFakeClosed = errors.New("store closed")

func (f *fakeRepository) Lookup(_ context.Context, name string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.closed {
		return nil, false, &domain.StorageError{Op: "get", Err: errFakeClosed}
	}
	if f.lookupErr != nil {
		return nil, false, &domain.StorageError{Op: "get", Err: f.lookupErr}
	}
	data, ok := f.data[name]
	return slices.Clone(data), ok, nil
}

func (f *fakeRepository) InsertIfAbsent(_ context.Context, name string, data []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, &domain.StorageError{Op: "insert", Err: errFakeClosed}
	}
	if _, ok := f.data[name]; ok {
		return false, nil
	}
	f.data[name] = slices.Clone(data)
	return true, nil
}

func (f *fakeRepository) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &domain.StorageError{Op: "delete", Err: errFakeClosed}
	}
	if f.deleteErr != nil {
		return &domain.StorageError{Op: "delete", Err: f.deleteErr}
	}
	delete(f.data, name)
	return nil
}

func (f *fakeRepository) Names(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, &domain.StorageError{Op: "list", Err: errFakeClosed}
	}
	names := make([]string, 0, len(f.data))
	for name := range f.data {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (f *fakeRepository) Flush(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	if f.flushErr != nil {
		return &domain.StorageError{Op: "flush", Err: f.flushErr}
	}
	return nil
}

func (f *fakeRepository) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.closeErr != nil {
		return &domain.StorageError{Op: "close", Err: f.closeErr}
	}
	return nil
}

func (f *fakeRepository) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}
