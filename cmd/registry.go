package cmd

import (
	"context"
	"fmt"

	"github.com/zjrosen/authprx/internal/cachemanager"
	"github.com/zjrosen/authprx/internal/config"
	"github.com/zjrosen/authprx/internal/flags"
	"github.com/zjrosen/authprx/internal/infrastructure/sqlite"
	"github.com/zjrosen/authprx/internal/log"
	registry "github.com/zjrosen/authprx/internal/registry/application"
	"github.com/zjrosen/authprx/internal/registry/domain"
	"github.com/zjrosen/authprx/internal/tracing"
)

// initializeRegistry installs the process registry. Tests swap in a
// fresh registry.Handle.
var initializeRegistry = registry.Initialize

// openRegistry initializes tracing and the registry for c. The returned
// shutdown closes both.
func openRegistry(ctx context.Context, c config.Config) (*registry.Registry, func(), error) {
	featureFlags := flags.New(c.Flags)

	provider, err := tracing.NewProvider(ctx, c.Tracing.Provider())
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}

	var opts []registry.Option
	if provider.Enabled() && featureFlags.Enabled(flags.FlagTracing) {
		opts = append(opts, registry.WithTracer(provider.Tracer()))
	}
	if featureFlags.Enabled(flags.FlagRecordCache) {
		cache := cachemanager.NewInMemoryCacheManager[string, domain.Api]("api-records", c.Cache.TTL, c.Cache.CleanupInterval)
		opts = append(opts, registry.WithCache(cache, c.Cache.TTL))
	}

	storagePath := c.StoragePath()
	reg, err := initializeRegistry(ctx, func(context.Context) (domain.ApiRepository, error) {
		repo, err := sqlite.OpenApiRepository(storagePath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}, opts...)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, fmt.Errorf("opening registry at %s: %w", storagePath, err)
	}

	shutdown := func() {
		if err := reg.Close(); err != nil {
			log.ErrorErr(log.CatRegistry, "Failed to close registry", err)
		}
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "Failed to flush traces", err)
		}
	}
	return reg, shutdown, nil
}
