package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miradorstack/feedback-lab/internal/models"
)

// ErrNotFound signals that a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store persists generated responses and evaluations. Both collections are
// append-only.
type Store interface {
	CreateResponse(ctx context.Context, resp models.GeneratedResponse) error
	GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error)
	CreateEvaluation(ctx context.Context, eval models.Evaluation) error
	// ListEvaluations returns at most limit evaluations, newest first.
	ListEvaluations(ctx context.Context, limit int) ([]models.Evaluation, error)
	Ping(ctx context.Context) error
	Close() error
}

// StoreConfig selects and configures a persistence backend.
type StoreConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenStore constructs the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		st, err := OpenSQLStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
