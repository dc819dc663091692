package repo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/miradorstack/feedback-lab/internal/cache"
	"github.com/miradorstack/feedback-lab/internal/models"
)

const responseKeyPrefix = "response:"

// CachedStore fronts response lookups with a cache provider. Responses are
// immutable once written, so entries never need invalidation. Evaluation
// reads always go to the underlying store.
type CachedStore struct {
	Store
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps store. A nil provider disables caching.
func NewCachedStore(store Store, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: provider, ttl: ttl, logger: logger}
}

func (s *CachedStore) CreateResponse(ctx context.Context, resp models.GeneratedResponse) error {
	if err := s.Store.CreateResponse(ctx, resp); err != nil {
		return err
	}
	s.put(ctx, resp)
	return nil
}

func (s *CachedStore) GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error) {
	payload, err := s.cache.Get(ctx, responseKeyPrefix+id)
	if err == nil {
		var resp models.GeneratedResponse
		if jsonErr := json.Unmarshal(payload, &resp); jsonErr == nil {
			return resp, nil
		}
		s.logger.Warn("discarding undecodable cached response", slog.String("response_id", id))
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("response cache read failed", slog.String("response_id", id), slog.Any("error", err))
	}

	resp, err := s.Store.GetResponse(ctx, id)
	if err != nil {
		return models.GeneratedResponse{}, err
	}
	s.put(ctx, resp)
	return resp, nil
}

// Close releases the cache and the underlying store.
func (s *CachedStore) Close() error {
	return errors.Join(s.cache.Close(), s.Store.Close())
}

func (s *CachedStore) put(ctx context.Context, resp models.GeneratedResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, responseKeyPrefix+resp.ID, payload, s.ttl); err != nil {
		s.logger.Warn("response cache write failed", slog.String("response_id", resp.ID), slog.Any("error", err))
	}
}
