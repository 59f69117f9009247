// Package registry is the application layer of the Api registry. It owns
// the store handle, encodes and decodes records, and enforces the
// no-overwrite creation contract.
package registry

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/authprx/internal/cachemanager"
	"github.com/zjrosen/authprx/internal/log"
	"github.com/zjrosen/authprx/internal/pubsub"
	"github.com/zjrosen/authprx/internal/registry/domain"
	"github.com/zjrosen/authprx/internal/tracing"
)

// ApiEvent is the payload published for registry changes.
type ApiEvent struct {
	Name string
	Api  domain.Api
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache serves repeated Get calls from cache. Entries live for ttl;
// zero uses the cache default.
func WithCache(cache cachemanager.CacheManager[string, domain.Api], ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// WithTracer records a span per registry operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = tracer
	}
}

// Registry maps unique names to Api records on a durable store.
// It is safe for concurrent use.
type Registry struct {
	repo     domain.ApiRepository
	cache    cachemanager.CacheManager[string, domain.Api]
	cacheTTL time.Duration
	reader   *cachemanager.ReadThroughCache[string, domain.Api]
	broker   *pubsub.Broker[ApiEvent]
	tracer   trace.Tracer

	closeOnce sync.Once
	closeErr  error
}

// New creates a Registry that owns repo until Close.
func New(repo domain.ApiRepository, opts ...Option) *Registry {
	r := &Registry{
		repo:   repo,
		broker: pubsub.NewBroker[ApiEvent](),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.reader = cachemanager.NewReadThroughCache[string, domain.Api](r.cache, r.load, r.cacheTTL, r.cache == nil).
		WithValidator(r.matchesStore)
	return r
}

// Get returns the record stored under name. found is false, with a nil
// error, when name has never been created. Corrupt stored bytes yield a
// *domain.DecodeError and store faults a *domain.StorageError.
func (r *Registry) Get(ctx context.Context, name string) (api domain.Api, found bool, err error) {
	var hit bool
	ctx, span := tracing.Start(ctx, r.tracer, tracing.SpanRegistryGet, attribute.String(tracing.AttrApiName, name))
	defer func() {
		span.SetAttributes(
			attribute.Bool(tracing.AttrApiFound, found),
			attribute.Bool(tracing.AttrCacheHit, hit),
		)
		tracing.Finish(span, err, errorType(err))
	}()

	if err := domain.ValidateName(name); err != nil {
		return domain.Api{}, false, err
	}

	api, found, hit, err = r.reader.Fetch(ctx, name)
	if err != nil || !found {
		return domain.Api{}, false, err
	}
	return api.Clone(), true, nil
}

// load reads and decodes one record from the store.
func (r *Registry) load(ctx context.Context, name string) (domain.Api, bool, error) {
	data, found, err := r.repo.Lookup(ctx, name)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Lookup failed", err, "name", name)
		return domain.Api{}, false, err
	}
	if !found {
		log.Debug(log.CatRegistry, "Api not found", "name", name)
		return domain.Api{}, false, nil
	}

	api, err := domain.Decode(data)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Stored api is corrupt", err, "name", name, "bytes", len(data))
		return domain.Api{}, false, err
	}
	return api, true, nil
}

// matchesStore reports whether a cached record still encodes to the bytes
// stored under name. Records are only cached after a successful encode or a
// strict decode, so equal bytes mean an identical record.
func (r *Registry) matchesStore(ctx context.Context, name string, cached domain.Api) (bool, error) {
	data, found, err := r.repo.Lookup(ctx, name)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Lookup failed", err, "name", name)
		return false, err
	}
	if !found {
		log.Warn(log.CatCache, "Cached api no longer stored", "name", name)
		return false, nil
	}
	encoded, err := domain.Encode(cached)
	if err != nil || !bytes.Equal(encoded, data) {
		log.Warn(log.CatCache, "Cached api differs from store", "name", name)
		return false, nil
	}
	return true, nil
}

// Create stores api under name. It fails with *domain.AlreadyExistsError,
// leaving the store untouched, when name is occupied; concurrent creates
// for one name have exactly one winner. Success is reported only after the
// store has been flushed; when the flush fails the inserted record is
// removed again.
func (r *Registry) Create(ctx context.Context, name string, api domain.Api) (err error) {
	ctx, span := tracing.Start(ctx, r.tracer, tracing.SpanRegistryCreate,
		attribute.String(tracing.AttrApiName, name),
		attribute.Int(tracing.AttrClientLimit, int(api.ClientLimit)),
		attribute.Int(tracing.AttrPathCount, len(api.ProtectedPaths)+len(api.UnprotectedPaths)),
	)
	defer func() { tracing.Finish(span, err, errorType(err)) }()

	if err := domain.ValidateName(name); err != nil {
		return err
	}

	data, err := domain.Encode(api)
	if err != nil {
		return err
	}
	span.AddEvent(tracing.EventEncoded)

	inserted, err := r.repo.InsertIfAbsent(ctx, name, data)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "Insert failed", err, "name", name)
		return err
	}
	if !inserted {
		log.Info(log.CatRegistry, "Api already exists", "name", name)
		return &domain.AlreadyExistsError{Name: name}
	}
	span.AddEvent(tracing.EventInserted)

	if err := r.repo.Flush(ctx); err != nil {
		log.ErrorErr(log.CatRegistry, "Flush failed", err, "name", name)
		if delErr := r.repo.Delete(context.WithoutCancel(ctx), name); delErr != nil {
			log.ErrorErr(log.CatRegistry, "Failed to remove unflushed api", delErr, "name", name)
			return errors.Join(err, delErr)
		}
		span.AddEvent(tracing.EventRemoved)
		return err
	}
	span.AddEvent(tracing.EventFlushed)

	stored := api.Clone()
	r.reader.Prime(ctx, name, stored)
	r.broker.Publish(pubsub.CreatedEvent, ApiEvent{Name: name, Api: stored.Clone()})
	log.Info(log.CatRegistry, "Api created", "name", name, "bytes", len(data))
	return nil
}

// List returns every stored name in byte order.
func (r *Registry) List(ctx context.Context) (names []string, err error) {
	ctx, span := tracing.Start(ctx, r.tracer, tracing.SpanRegistryList)
	defer func() {
		span.SetAttributes(attribute.Int(tracing.AttrApiCount, len(names)))
		tracing.Finish(span, err, errorType(err))
	}()

	return r.repo.Names(ctx)
}

// Subscribe delivers an event for every successful Create until ctx is done
// or the registry is closed.
func (r *Registry) Subscribe(ctx context.Context) <-chan pubsub.Event[ApiEvent] {
	return r.broker.Subscribe(ctx)
}

// Close releases the store handle. Later calls return the first result.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.broker.Close()
		if r.cache != nil {
			r.cache.Flush(context.Background())
		}
		r.closeErr = r.repo.Close()
		if r.closeErr != nil {
			log.ErrorErr(log.CatRegistry, "Close failed", r.closeErr)
		}
	})
	return r.closeErr
}

// errorType classifies err for span attributes.
func errorType(err error) string {
	var (
		exists  *domain.AlreadyExistsError
		decode  *domain.DecodeError
		encode  *domain.EncodeError
		storage *domain.StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &exists):
		return "already_exists"
	case errors.As(err, &decode):
		return "decode"
	case errors.As(err, &encode):
		return "encode"
	case errors.As(err, &storage):
		return "storage"
	case errors.Is(err, domain.ErrInvalidName):
		return "invalid_name"
	default:
		return "unknown"
	}
}
