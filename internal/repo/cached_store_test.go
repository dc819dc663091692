package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/feedback-lab/internal/cache"
	"github.com/miradorstack/feedback-lab/internal/models"
	"github.com/miradorstack/feedback-lab/internal/utils"
)

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error) {
	c.gets++
	return c.MemoryStore.GetResponse(ctx, id)
}

type brokenCache struct{ cache.NoopProvider }

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestCachedStoreServesFromCache(t *testing.T) {
	backing := &countingStore{MemoryStore: NewMemoryStore()}
	st := NewCachedStore(backing, cache.NewMemoryProvider(16), time.Minute, utils.NewLogger("error", false))
	ctx := context.Background()

	resp := models.GeneratedResponse{ID: "r1", Prompt: "p", Response: "text", Timestamp: time.Now().UTC(), QualityWarnings: []models.QualityWarning{models.WarningRepeatedPhrases}}
	if err := st.CreateResponse(ctx, resp); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := st.GetResponse(ctx, "r1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Response != "text" || len(got.QualityWarnings) != 1 {
			t.Fatalf("unexpected response: %+v", got)
		}
	}
	if backing.gets != 0 {
		t.Fatalf("expected cache hits only, store was read %d times", backing.gets)
	}
}

func TestCachedStoreFallsBackOnCacheError(t *testing.T) {
	backing := &countingStore{MemoryStore: NewMemoryStore()}
	st := NewCachedStore(backing, brokenCache{}, time.Minute, utils.NewLogger("error", false))
	ctx := context.Background()
	_ = st.CreateResponse(ctx, models.GeneratedResponse{ID: "r1", Timestamp: time.Now()})

	if _, err := st.GetResponse(ctx, "r1"); err != nil {
		t.Fatalf("expected store fallback, got %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected one store read, got %d", backing.gets)
	}
}

func TestCachedStoreNotFound(t *testing.T) {
	st := NewCachedStore(NewMemoryStore(), cache.NewMemoryProvider(0), 0, nil)
	if _, err := st.GetResponse(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type closeErrStore struct {
	*MemoryStore
	err error
}

func (c closeErrStore) Close() error { return c.err }

type closeErrCache struct {
	cache.NoopProvider
	err error
}

func (c closeErrCache) Close() error { return c.err }

func TestCachedStoreCloseReportsBothErrors(t *testing.T) {
	storeErr := errors.New("store close failed")
	cacheErr := errors.New("cache close failed")
	st := NewCachedStore(closeErrStore{MemoryStore: NewMemoryStore(), err: storeErr}, closeErrCache{err: cacheErr}, 0, nil)

	err := st.Close()
	if !errors.Is(err, storeErr) || !errors.Is(err, cacheErr) {
		t.Fatalf("expected both close errors, got %v", err)
	}

	clean := NewCachedStore(NewMemoryStore(), cache.NewMemoryProvider(0), 0, nil)
	if err := clean.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
