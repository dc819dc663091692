package repo

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/miradorstack/feedback-lab/internal/models"
)

// MemoryStore keeps records in process memory. Used for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	responses   map[string]models.GeneratedResponse
	evaluations []models.Evaluation
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{responses: make(map[string]models.GeneratedResponse)}
}

func (s *MemoryStore) CreateResponse(ctx context.Context, resp models.GeneratedResponse) error {
	if resp.ID == "" {
		return errors.New("response id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.responses[resp.ID]; exists {
		return errors.New("response already exists")
	}
	s.responses[resp.ID] = cloneResponse(resp)
	return nil
}

func (s *MemoryStore) GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[id]
	if !ok {
		return models.GeneratedResponse{}, ErrNotFound
	}
	return cloneResponse(resp), nil
}

func (s *MemoryStore) CreateEvaluation(ctx context.Context, eval models.Evaluation) error {
	if eval.ID == "" {
		return errors.New("evaluation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, eval)
	return nil
}

func (s *MemoryStore) ListEvaluations(ctx context.Context, limit int) ([]models.Evaluation, error) {
	s.mu.RLock()
	out := make([]models.Evaluation, 0, len(s.evaluations))
	for i := len(s.evaluations) - 1; i >= 0; i-- {
		out = append(out, s.evaluations[i])
	}
	s.mu.RUnlock()

	// Reverse insertion order plus a stable sort keeps later inserts first on equal timestamps.

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneResponse(resp models.GeneratedResponse) models.GeneratedResponse {
	resp.QualityWarnings = append([]models.QualityWarning{}, resp.QualityWarnings...)
	return resp
}
