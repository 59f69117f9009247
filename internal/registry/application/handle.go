package registry

import (
	"context"
	"sync"

	"github.com/zjrosen/authprx/internal/log"
	"github.com/zjrosen/authprx/internal/registry/domain"
)

// Opener opens the store a Registry will own.
type Opener func(ctx context.Context) (domain.ApiRepository, error)

// Handle is a set-once cell holding the process Registry.
// The zero value is ready to use.
type Handle struct {
	mu  sync.Mutex
	reg *Registry
}

// Initialize opens the store through open and installs a Registry over it.
// A second call fails with domain.ErrAlreadyInitialized without opening
// anything, and the installed Registry stays in place. Open failures are
// returned as *domain.StorageError with Op "open".
func (h *Handle) Initialize(ctx context.Context, open Opener, opts ...Option) (*Registry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reg != nil {
		log.Warn(log.CatRegistry, "Registry already initialized")
		return nil, domain.ErrAlreadyInitialized
	}

	repo, err := open(ctx)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Failed to open store", err)
		if domain.IsStorageError(err) {
			return nil, err
		}
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	h.reg = New(repo, opts...)
	log.Info(log.CatRegistry, "Registry initialized")
	return h.reg, nil
}

// Current returns the installed Registry, or false before Initialize
// has succeeded.
func (h *Handle) Current() (*Registry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg, h.reg != nil
}

var defaultHandle Handle

// Initialize installs the process-wide Registry. See Handle.Initialize.
func Initialize(ctx context.Context, open Opener, opts ...Option) (*Registry, error) {
	return defaultHandle.Initialize(ctx, open, opts...)
}

// Current returns the process-wide Registry. See Handle.Current.
func Current() (*Registry, bool) {
	return defaultHandle.Current()
}
