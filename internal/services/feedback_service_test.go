package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/feedback-lab/internal/cache"
	"github.com/miradorstack/feedback-lab/internal/models"
	"github.com/miradorstack/feedback-lab/internal/repo"
	"github.com/miradorstack/feedback-lab/internal/utils"
)

type completerStub struct {
	text   string
	err    error
	prompt string
}

func (c *completerStub) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.text, c.err
}

type failingStore struct {
	*repo.MemoryStore
	err error
}

func (f *failingStore) CreateResponse(ctx context.Context, resp models.GeneratedResponse) error {
	return f.err
}

func (f *failingStore) ListEvaluations(ctx context.Context, limit int) ([]models.Evaluation, error) {
	return nil, f.err
}

func newTestService(llm Completer, store repo.Store, opts Options) *FeedbackService {
	svc := NewFeedbackService(utils.NewLogger("error", false), llm, store, opts)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	ids := 0
	svc.newID = func() string {
		ids++
		return "id-" + strconv.Itoa(ids)
	}
	return svc
}

func TestGeneratePersistsWithWarnings(t *testing.T) {
	store := repo.NewMemoryStore()
	llm := &completerStub{text: "Too brief."}
	svc := newTestService(llm, store, DefaultOptions())

	resp, err := svc.Generate(context.Background(), "Explain how photosynthesis works")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.prompt != "Explain how photosynthesis works" {
		t.Fatalf("prompt not forwarded: %q", llm.prompt)
	}
	if len(resp.QualityWarnings) != 2 || resp.QualityWarnings[0] != models.WarningTooShort || resp.QualityWarnings[1] != models.WarningOffTopic {
		t.Fatalf("unexpected warnings: %v", resp.QualityWarnings)
	}

	stored, err := store.GetResponse(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("expected stored response: %v", err)
	}
	if stored.Response != "Too brief." || len(stored.QualityWarnings) != 2 {
		t.Fatalf("unexpected stored response: %+v", stored)
	}
}

func TestGenerateBlankPrompt(t *testing.T) {
	svc := newTestService(&completerStub{text: "x"}, repo.NewMemoryStore(), DefaultOptions())
	_, err := svc.Generate(context.Background(), "   ")
	if utils.KindOf(err) != utils.KindInvalid {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestGenerateProviderFailureStoresNothing(t *testing.T) {
	store := repo.NewMemoryStore()
	svc := newTestService(&completerStub{err: errors.New("API key not configured")}, store, DefaultOptions())

	_, err := svc.Generate(context.Background(), "hello there friend")
	if err == nil {
		t.Fatalf("expected error")
	}
	if utils.KindOf(err) != utils.KindInternal {
		t.Fatalf("expected internal kind, got %v", utils.KindOf(err))
	}
	if msg := utils.MessageOf(err); msg != "Failed to generate response: API key not configured" {
		t.Fatalf("unexpected message %q", msg)
	}
	if _, err := store.GetResponse(context.Background(), "id-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestGenerateStoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: repo.NewMemoryStore(), err: errors.New("disk full")}
	svc := newTestService(&completerStub{text: "fine"}, store, DefaultOptions())
	if _, err := svc.Generate(context.Background(), "hello"); utils.KindOf(err) != utils.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGetResponseNotFound(t *testing.T) {
	svc := newTestService(nil, repo.NewMemoryStore(), DefaultOptions())
	_, err := svc.GetResponse(context.Background(), "nope")
	if utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitEvaluationValidation(t *testing.T) {
	valid := models.EvaluationInput{ResponseID: "r1", EvaluatorID: "alice", Helpfulness: 4, Accuracy: 5, Clarity: 3}

	cases := []struct {
		name    string
		opts    Options
		mutate  func(*models.EvaluationInput)
		wantErr string
	}{
		{name: "valid", opts: DefaultOptions(), mutate: func(*models.EvaluationInput) {}},
		{name: "missing response", opts: DefaultOptions(), mutate: func(in *models.EvaluationInput) { in.ResponseID = "" }, wantErr: "response_id"},
		{name: "missing evaluator", opts: DefaultOptions(), mutate: func(in *models.EvaluationInput) { in.EvaluatorID = " " }, wantErr: "evaluator_id"},
		{name: "score too high", opts: DefaultOptions(), mutate: func(in *models.EvaluationInput) { in.Accuracy = 6 }, wantErr: "accuracy"},
		{name: "score too low", opts: DefaultOptions(), mutate: func(in *models.EvaluationInput) { in.Clarity = 0 }, wantErr: "clarity"},
		{name: "range disabled", opts: Options{ListLimit: 10}, mutate: func(in *models.EvaluationInput) { in.Helpfulness = 9 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(nil, repo.NewMemoryStore(), tc.opts)
			in := valid
			tc.mutate(&in)
			eval, err := svc.SubmitEvaluation(context.Background(), in)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if eval.ID == "" || eval.Timestamp.IsZero() || eval.EvaluatorID != in.EvaluatorID {
					t.Fatalf("unexpected evaluation: %+v", eval)
				}
				return
			}
			if utils.KindOf(err) != utils.KindInvalid || !strings.Contains(utils.MessageOf(err), tc.wantErr) {
				t.Fatalf("expected invalid error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestListEvaluationsNewestFirstAndAnalytics(t *testing.T) {
	svc := newTestService(nil, repo.NewMemoryStore(), DefaultOptions())
	ctx := context.Background()

	inputs := []models.EvaluationInput{
		{ResponseID: "r1", EvaluatorID: "alice", Helpfulness: 4, Accuracy: 5, Clarity: 3, HasHallucination: true, ModelResponse: "one two", ImprovedResponse: "one two three four"},
		{ResponseID: "r1", EvaluatorID: "bob", Helpfulness: 2, Accuracy: 3, Clarity: 5, ModelResponse: "a b c d", ImprovedResponse: ""},
	}
	for _, in := range inputs {
		if _, err := svc.SubmitEvaluation(ctx, in); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	list, err := svc.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].EvaluatorID != "bob" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	summary, err := svc.Analytics(ctx)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if summary.TotalEvaluations != 2 || summary.AvgHelpfulness != 3 || summary.HallucinationRate != 50 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.EvaluatorStats["alice"].Count != 1 || summary.EvaluatorStats["alice"].AvgRating != 4 {
		t.Fatalf("unexpected evaluator stats: %+v", summary.EvaluatorStats)
	}
}

func TestListEvaluationsEmpty(t *testing.T) {
	svc := newTestService(nil, repo.NewMemoryStore(), DefaultOptions())
	list, err := svc.ListEvaluations(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestAnalyticsStoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: repo.NewMemoryStore(), err: errors.New("boom")}
	svc := newTestService(nil, store, DefaultOptions())
	if _, err := svc.Analytics(context.Background()); utils.KindOf(err) != utils.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGetResponseThroughCachedStore(t *testing.T) {
	store := repo.NewCachedStore(repo.NewMemoryStore(), cache.NewMemoryProvider(8), time.Minute, nil)
	svc := newTestService(&completerStub{text: "Cached answer."}, store, DefaultOptions())
	ctx := context.Background()

	resp, err := svc.Generate(ctx, "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	got, err := svc.GetResponse(ctx, resp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Response != "Cached answer." {
		t.Fatalf("unexpected response: %+v", got)
	}
	if _, err := svc.GetResponse(ctx, "missing"); utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
