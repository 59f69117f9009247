package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/zjrosen/authprx/internal/cachemanager"
	"github.com/zjrosen/authprx/internal/infrastructure/sqlite"
	"github.com/zjrosen/authprx/internal/pubsub"
	"github.com/zjrosen/authprx/internal/registry/domain"
	"github.com/zjrosen/authprx/internal/testutil"
	"github.com/zjrosen/authprx/internal/tracing"
)

// newSQLiteRegistry opens a Registry on a fresh database under a temp dir.
func newSQLiteRegistry(t *testing.T, opts ...Option) (*Registry, *sqlite.ApiRepository) {
	t.Helper()
	repo, err := sqlite.OpenApiRepository(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	reg := New(repo, opts...)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, repo
}

func newRecordCache() *cachemanager.InMemoryCacheManager[string, domain.Api] {
	return cachemanager.NewInMemoryCacheManager[string, domain.Api]("records", time.Minute, time.Minute)
}

func sampleApi() domain.Api {
	return domain.Api{
		ClientLimit:      10,
		ProtectedPaths:   []string{"/admin"},
		UnprotectedPaths: []string{"/health"},
	}
}

func TestRegistry_GetAbsent(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)

	api, found, err := reg.Get(context.Background(), "svc")
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, domain.Default().Equal(api))
}

func TestRegistry_CreateThenGet(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))

	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sampleApi(), got)
}

func TestRegistry_CreateDefault(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "svc", domain.Default()))

	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, domain.Default().Equal(got))
}

func TestRegistry_DuplicateCreate(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx := context.Background()

	first := sampleApi()
	second := domain.Api{ClientLimit: 99, ProtectedPaths: []string{"/other"}}

	require.NoError(t, reg.Create(ctx, "svc", first))

	err := reg.Create(ctx, "svc", second)
	var exists *domain.AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	require.Equal(t, "svc", exists.Name)
	require.EqualError(t, err, "api with name svc already exists")

	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, first, got)
}

func TestRegistry_ConcurrentCreateSingleWinner(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx := context.Background()

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = reg.Create(ctx, "svc", domain.Api{ClientLimit: uint16(i + 1)})
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one create succeeded")
			winner = i
			continue
		}
		require.True(t, domain.IsAlreadyExists(err), "loser %d got %v", i, err)
	}
	require.NotEqual(t, -1, winner, "no create succeeded")

	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint16(winner+1), got.ClientLimit)
}

func TestRegistry_DecodeFault(t *testing.T) {
	reg, repo := newSQLiteRegistry(t)
	ctx := context.Background()
	testutil.NewBuilder(t, repo).WithRawRecord("svc", []byte{0x01}).Build()

	_, found, err := reg.Get(ctx, "svc")
	require.False(t, found)
	require.True(t, domain.IsDecodeError(err), "expected DecodeError, got %v", err)
	require.False(t, domain.IsStorageError(err))
}

func TestRegistry_ReadsSeededRecords(t *testing.T) {
	reg, repo := newSQLiteRegistry(t)
	ctx := context.Background()
	testutil.NewBuilder(t, repo).WithStandardApis().Build()

	names, err := reg.List(ctx)
	require.NoError(t, err)
	require.Equal(t, testutil.StandardApiNames, names)

	admin, found, err := reg.Get(ctx, "admin")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint16(5), admin.ClientLimit)
	require.Equal(t, []string{"/"}, admin.ProtectedPaths)
	require.Equal(t, []string{"/health"}, admin.UnprotectedPaths)

	err = reg.Create(ctx, "billing", sampleApi())
	require.True(t, domain.IsAlreadyExists(err))
}

func TestRegistry_DecodeFaultIsNotCached(t *testing.T) {
	repo := newFakeRepository()
	repo.data["svc"] = []byte{0xff}
	cache := newRecordCache()
	reg := New(repo, WithCache(cache, time.Minute))

	for i := 0; i < 2; i++ {
		_, _, err := reg.Get(context.Background(), "svc")
		require.True(t, domain.IsDecodeError(err))
	}
	require.Equal(t, 2, repo.lookupCount())
	require.Zero(t, cache.Len())
}

func TestRegistry_StorageFault(t *testing.T) {
	repo := newFakeRepository()
	repo.lookupErr = errors.New("disk on fire")
	reg := New(repo)

	_, found, err := reg.Get(context.Background(), "svc")
	require.False(t, found)
	require.True(t, domain.IsStorageError(err))
	require.False(t, domain.IsDecodeError(err))
}

func TestRegistry_FlushFailureIsReported(t *testing.T) {
	repo := newFakeRepository()
	repo.flushErr = errors.New("fsync failed")
	reg := New(repo, WithCache(newRecordCache(), time.Minute))
	ctx := context.Background()

	events := reg.Subscribe(ctx)

	err := reg.Create(ctx, "svc", sampleApi())
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "flush", storageErr.Op)

	select {
	case evt := <-events:
		t.Fatalf("unexpected event %v", evt)
	default:
	}

	// The unflushed record is removed, so the store looks untouched.
	_, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, repo.data)

	repo.flushErr = nil
	require.NoError(t, reg.Create(ctx, "svc", sampleApi()), "retry after a failed flush")
	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sampleApi(), got)
}

func TestRegistry_FlushFailureRemovalFails(t *testing.T) {
	repo := newFakeRepository()
	repo.flushErr = errors.New("fsync failed")
	repo.deleteErr = errors.New("read-only")
	reg := New(repo)

	err := reg.Create(context.Background(), "svc", sampleApi())
	require.True(t, domain.IsStorageError(err))
	require.ErrorContains(t, err, "fsync failed")
	require.ErrorContains(t, err, "read-only")
}

func TestRegistry_InvalidName(t *testing.T) {
	repo := newFakeRepository()
	reg := New(repo)

	_, _, err := reg.Get(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidName)

	err = reg.Create(context.Background(), "", sampleApi())
	require.ErrorIs(t, err, domain.ErrInvalidName)
	require.Empty(t, repo.data)
}

func TestRegistry_EncodeErrorMutatesNothing(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx := context.Background()

	err := reg.Create(ctx, "svc", domain.Api{ProtectedPaths: []string{"\xff"}})
	var encodeErr *domain.EncodeError
	require.ErrorAs(t, err, &encodeErr)

	_, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRegistry_List(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx := context.Background()

	names, err := reg.List(ctx)
	require.NoError(t, err)
	require.Empty(t, names)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Create(ctx, name, domain.Default()))
	}

	names, err = reg.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegistry_Subscribe(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := reg.Subscribe(ctx)
	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))

	evt, ok := pubsub.Next(ctx, events)
	require.True(t, ok)
	require.Equal(t, pubsub.CreatedEvent, evt.Type)
	require.Equal(t, "svc", evt.Payload.Name)
	require.Equal(t, sampleApi(), evt.Payload.Api)

	// A rejected duplicate publishes nothing.
	require.Error(t, reg.Create(ctx, "svc", sampleApi()))
	require.NoError(t, reg.Close())
	_, ok = pubsub.Next(ctx, events)
	require.False(t, ok, "channel should close with the registry")
}

func TestRegistry_GetReturnsCopies(t *testing.T) {
	reg := New(newFakeRepository(), WithCache(newRecordCache(), time.Minute))
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))

	got, _, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	got.ProtectedPaths[0] = "/mutated"

	again, _, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.Equal(t, "/admin", again.ProtectedPaths[0])
}

func TestRegistry_CacheServesRepeatedGets(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	repo := newFakeRepository()
	cache := newRecordCache()
	reg := New(repo, WithCache(cache, time.Minute), WithTracer(provider.Tracer("test")))
	ctx := context.Background()

	// Absence is not cached.
	_, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.False(t, found)
	require.Zero(t, cache.Len())

	// Create primes the cache; each hit is checked against the store.
	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))
	for i := 0; i < 3; i++ {
		got, found, err := reg.Get(ctx, "svc")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, sampleApi(), got)
	}
	require.Equal(t, 4, repo.lookupCount())

	var hits []bool
	for _, span := range exporter.GetSpans() {
		if span.Name != tracing.SpanRegistryGet {
			continue
		}
		for _, attr := range span.Attributes {
			if string(attr.Key) == tracing.AttrCacheHit {
				hits = append(hits, attr.Value.AsBool())
			}
		}
	}
	require.Equal(t, []bool{false, true, true, true}, hits)

	require.NoError(t, reg.Close())
	require.Zero(t, cache.Len(), "Close should flush the cache")
}

func TestRegistry_CachedRecordCorruptedInStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	repo, err := sqlite.OpenApiRepository(path)
	require.NoError(t, err)
	cache := newRecordCache()
	reg := New(repo, WithCache(cache, time.Minute))
	defer reg.Close()
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))
	_, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, cache.Len())

	// Another writer replaces the stored bytes behind the registry.
	other, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Exec(`UPDATE apis SET data = x'01' WHERE name = ?`, []byte("svc"))
	require.NoError(t, err)

	_, found, err = reg.Get(ctx, "svc")
	require.False(t, found)
	require.True(t, domain.IsDecodeError(err), "expected DecodeError, got %v", err)
	require.Zero(t, cache.Len(), "the stale record must be evicted")

	replacement := domain.Api{ClientLimit: 42, ProtectedPaths: []string{"/v2"}, UnprotectedPaths: []string{}}
	data, err := domain.Encode(replacement)
	require.NoError(t, err)
	_, err = other.Exec(`UPDATE apis SET data = ? WHERE name = ?`, data, []byte("svc"))
	require.NoError(t, err)

	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.Equal(replacement))
}

func TestRegistry_WithoutCacheAlwaysReads(t *testing.T) {
	repo := newFakeRepository()
	reg := New(repo)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))
	for i := 0; i < 3; i++ {
		_, _, err := reg.Get(ctx, "svc")
		require.NoError(t, err)
	}
	require.Equal(t, 3, repo.lookupCount())
}

func TestRegistry_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	reg := New(newFakeRepository(), WithTracer(provider.Tracer("test")))
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))
	require.Error(t, reg.Create(ctx, "svc", sampleApi()))
	_, _, _ = reg.Get(ctx, "svc")
	_, _ = reg.List(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 4)

	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{
		tracing.SpanRegistryCreate,
		tracing.SpanRegistryCreate,
		tracing.SpanRegistryGet,
		tracing.SpanRegistryList,
	}, names)

	require.Len(t, spans[0].Events, 3, "encoded, inserted and flushed events")
	require.Equal(t, "Error", spans[1].Status.Code.String())
	var errType string
	for _, attr := range spans[1].Attributes {
		if string(attr.Key) == tracing.AttrErrorType {
			errType = attr.Value.AsString()
		}
	}
	require.Equal(t, "already_exists", errType)
}

func TestRegistry_CloseIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	repo.closeErr = errors.New("close failed")
	reg := New(repo)

	first := reg.Close()
	require.True(t, domain.IsStorageError(first))
	require.Equal(t, first, reg.Close())
}

func TestRegistry_GetAfterCloseFaults(t *testing.T) {
	reg, _ := newSQLiteRegistry(t)
	require.NoError(t, reg.Close())

	_, _, err := reg.Get(context.Background(), "svc")
	require.True(t, domain.IsStorageError(err))
}

func TestRegistry_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	repo, err := sqlite.OpenApiRepository(path)
	require.NoError(t, err)
	reg := New(repo)
	require.NoError(t, reg.Create(ctx, "svc", sampleApi()))
	require.NoError(t, reg.Close())

	repo, err = sqlite.OpenApiRepository(path)
	require.NoError(t, err)
	reg = New(repo)
	defer reg.Close()

	got, found, err := reg.Get(ctx, "svc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sampleApi(), got)
}

func TestRegistry_ConcurrentDistinctNames(t *testing.T) {
	reg, _ := newSQLiteRegistry(t, WithCache(newRecordCache(), time.Minute))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("svc-%d", i)
			assert.NoError(t, reg.Create(ctx, name, domain.Api{ClientLimit: uint16(i)}))
			got, found, err := reg.Get(ctx, name)
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, uint16(i), got.ClientLimit)
		}(i)
	}
	wg.Wait()

	names, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, names, 8)
}

// apiGen draws records whose paths are valid UTF-8.
func apiGen() *rapid.Generator[domain.Api] {
	return rapid.Custom(func(t *rapid.T) domain.Api {
		return domain.Api{
			ClientLimit:      rapid.Uint16().Draw(t, "client_limit"),
			ProtectedPaths:   rapid.SliceOfN(rapid.String(), 0, 5).Draw(t, "protected"),
			UnprotectedPaths: rapid.SliceOfN(rapid.String(), 0, 5).Draw(t, "unprotected"),
		}
	})
}

func TestRegistry_CreateGetProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := New(newFakeRepository())
		ctx := context.Background()

		name := rapid.StringN(1, 16, -1).Draw(rt, "name")
		first := apiGen().Draw(rt, "first")
		second := apiGen().Draw(rt, "second")

		if _, found, err := reg.Get(ctx, name); err != nil || found {
			rt.Fatalf("fresh name: found=%v err=%v", found, err)
		}
		if err := reg.Create(ctx, name, first); err != nil {
			rt.Fatalf("create: %v", err)
		}
		if err := reg.Create(ctx, name, second); !domain.IsAlreadyExists(err) {
			rt.Fatalf("second create: want AlreadyExists, got %v", err)
		}
		got, found, err := reg.Get(ctx, name)
		if err != nil || !found {
			rt.Fatalf("get: found=%v err=%v", found, err)
		}
		if !first.Equal(got) {
			rt.Fatalf("get returned %+v, want %+v", got, first)
		}
	})
}
