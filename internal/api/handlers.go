package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/miradorstack/feedback-lab/internal/models"
	"github.com/miradorstack/feedback-lab/internal/utils"
)

// FeedbackAPI is the service surface the HTTP handlers depend on.
type FeedbackAPI interface {
	Generate(ctx context.Context, prompt string) (models.GeneratedResponse, error)
	GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error)
	SubmitEvaluation(ctx context.Context, in models.EvaluationInput) (models.Evaluation, error)
	ListEvaluations(ctx context.Context) ([]models.Evaluation, error)
	Analytics(ctx context.Context) (models.AnalyticsSummary, error)
	Ready(ctx context.Context) error
}

const maxBodyBytes = 1 << 20

type errorBody struct {
	Detail string `json:"detail"`
}

type handlers struct {
	logger  *slog.Logger
	service FeedbackAPI
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.service.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetResponse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	var in models.EvaluationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eval, err := h.service.SubmitEvaluation(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (h *handlers) listEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := h.service.ListEvaluations(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (h *handlers) analytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Analytics(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, utils.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForKind(utils.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Any("error", err))
	}
	writeError(w, status, utils.MessageOf(err))
}

func statusForKind(kind utils.ErrorKind) int {
	switch kind {
	case utils.KindInvalid:
		return http.StatusBadRequest
	case utils.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
