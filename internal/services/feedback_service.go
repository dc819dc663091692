package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/feedback-lab/internal/analytics"
	"github.com/miradorstack/feedback-lab/internal/metrics"
	"github.com/miradorstack/feedback-lab/internal/models"
	"github.com/miradorstack/feedback-lab/internal/quality"
	"github.com/miradorstack/feedback-lab/internal/repo"
	"github.com/miradorstack/feedback-lab/internal/utils"
)

// Completer produces a completion for a user prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options tunes request validation and read bounds.
type Options struct {
	ListLimit         int
	EnforceScoreRange bool
	MinScore          int
	MaxScore          int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{ListLimit: 1000, EnforceScoreRange: true, MinScore: 1, MaxScore: 5}
}

// FeedbackService generates responses, records evaluations and summarises them.
type FeedbackService struct {
	logger    *slog.Logger
	llm       Completer
	store     repo.Store
	checker   *quality.Checker
	opts      Options
	latencies *utils.LatencyTracker
	now       func() time.Time
	newID     func() string
}

// NewFeedbackService wires the service facade.
func NewFeedbackService(logger *slog.Logger, llm Completer, store repo.Store, opts Options) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultOptions().ListLimit
	}
	return &FeedbackService{
		logger:    logger,
		llm:       llm,
		store:     store,
		checker:   quality.NewChecker(),
		opts:      opts,
		latencies: utils.NewLatencyTracker(1024),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
}

// Generate asks the provider for a completion, flags quality issues and
// persists the result.
func (s *FeedbackService) Generate(ctx context.Context, prompt string) (models.GeneratedResponse, error) {
	const op = "generate"
	if strings.TrimSpace(prompt) == "" {
		return models.GeneratedResponse{}, utils.NewAppError(op, utils.KindInvalid, "prompt must not be empty", nil)
	}
	if s.llm == nil {
		return models.GeneratedResponse{}, utils.NewAppError(op, utils.KindUnavailable, "Failed to generate response", errors.New("llm provider not configured"))
	}

	start := time.Now()
	text, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		metrics.ObserveGeneration(time.Since(start), metrics.OutcomeError)
		s.logger.Error("completion failed", slog.Any("error", err))
		return models.GeneratedResponse{}, utils.NewAppError(op, utils.KindInternal, "Failed to generate response", err)
	}

	resp := models.GeneratedResponse{
		ID:              s.newID(),
		Prompt:          prompt,
		Response:        text,
		Timestamp:       s.now(),
		QualityWarnings: s.checker.Check(text, prompt),
	}
	if err := s.store.CreateResponse(ctx, resp); err != nil {
		metrics.ObserveGeneration(time.Since(start), metrics.OutcomeError)
		s.logger.Error("persist response failed", slog.String("response_id", resp.ID), slog.Any("error", err))
		return models.GeneratedResponse{}, utils.NewAppError(op, utils.KindInternal, "Failed to generate response", err)
	}

	duration := time.Since(start)
	metrics.ObserveGeneration(duration, metrics.OutcomeSuccess)
	metrics.ObserveWarnings(resp.QualityWarnings)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("generation latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
	s.logger.Debug("response generated", slog.String("response_id", resp.ID), slog.Int("warnings", len(resp.QualityWarnings)))
	return resp, nil
}

// GetResponse loads a previously generated response.
func (s *FeedbackService) GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error) {
	const op = "get_response"
	resp, err := s.store.GetResponse(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.GeneratedResponse{}, utils.NewAppError(op, utils.KindNotFound, "Response not found", nil)
	}
	if err != nil {
		s.logger.Error("load response failed", slog.String("response_id", id), slog.Any("error", err))
		return models.GeneratedResponse{}, utils.NewAppError(op, utils.KindInternal, "Failed to load response", err)
	}
	return resp, nil
}

// SubmitEvaluation validates and records an evaluator's assessment.
func (s *FeedbackService) SubmitEvaluation(ctx context.Context, in models.EvaluationInput) (models.Evaluation, error) {
	const op = "submit_evaluation"
	if err := s.validate(in); err != nil {
		return models.Evaluation{}, utils.NewAppError(op, utils.KindInvalid, err.Error(), nil)
	}

	eval := models.NewEvaluation(s.newID(), in, s.now())
	if err := s.store.CreateEvaluation(ctx, eval); err != nil {
		s.logger.Error("persist evaluation failed", slog.String("response_id", in.ResponseID), slog.Any("error", err))
		return models.Evaluation{}, utils.NewAppError(op, utils.KindInternal, "Failed to submit evaluation", err)
	}
	metrics.ObserveEvaluation()
	return eval, nil
}

func (s *FeedbackService) validate(in models.EvaluationInput) error {
	if strings.TrimSpace(in.ResponseID) == "" {
		return errors.New("response_id is required")
	}
	if strings.TrimSpace(in.EvaluatorID) == "" {
		return errors.New("evaluator_id is required")
	}
	if !s.opts.EnforceScoreRange {
		return nil
	}
	scores := []struct {
		name  string
		value int
	}{
		{"helpfulness", in.Helpfulness},
		{"accuracy", in.Accuracy},
		{"clarity", in.Clarity},
	}
	for _, sc := range scores {
		if sc.value < s.opts.MinScore || sc.value > s.opts.MaxScore {
			return fmt.Errorf("%s must be between %d and %d", sc.name, s.opts.MinScore, s.opts.MaxScore)
		}
	}
	return nil
}

// ListEvaluations returns the most recent evaluations, newest first.
func (s *FeedbackService) ListEvaluations(ctx context.Context) ([]models.Evaluation, error) {
	evals, err := s.store.ListEvaluations(ctx, s.opts.ListLimit)
	if err != nil {
		s.logger.Error("list evaluations failed", slog.Any("error", err))
		return nil, utils.NewAppError("list_evaluations", utils.KindInternal, "Failed to list evaluations", err)
	}
	if evals == nil {
		evals = []models.Evaluation{}
	}
	return evals, nil
}

// Analytics summarises the most recent evaluations. It is recomputed on
// every call.
func (s *FeedbackService) Analytics(ctx context.Context) (models.AnalyticsSummary, error) {
	evals, err := s.store.ListEvaluations(ctx, s.opts.ListLimit)
	if err != nil {
		s.logger.Error("load evaluations for analytics failed", slog.Any("error", err))
		return models.AnalyticsSummary{}, utils.NewAppError("analytics", utils.KindInternal, "Failed to compute analytics", err)
	}
	return analytics.Aggregate(evals), nil
}

// Ready reports whether the backing store is reachable.
func (s *FeedbackService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return utils.NewAppError("ready", utils.KindUnavailable, "store unavailable", err)
	}
	return nil
}

// LatencyP95 returns the current p95 generation latency.
func (s *FeedbackService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
