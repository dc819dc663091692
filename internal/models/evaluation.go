package models

import "time"

// EvaluationInput carries the fields an evaluator submits.
type EvaluationInput struct {
	ResponseID       string `json:"response_id"`
	Prompt           string `json:"prompt"`
	ModelResponse    string `json:"model_response"`
	EvaluatorID      string `json:"evaluator_id"`
	Helpfulness      int    `json:"helpfulness"`
	Accuracy         int    `json:"accuracy"`
	Clarity          int    `json:"clarity"`
	HasHallucination bool   `json:"has_hallucination"`
	HasUnsafeContent bool   `json:"has_unsafe_content"`
	ImprovedResponse string `json:"improved_response"`
}

// Evaluation is a stored evaluator assessment. Prompt and ModelResponse are
// snapshots taken at submission time.
type Evaluation struct {
	ID               string    `json:"id"`
	ResponseID       string    `json:"response_id"`
	Prompt           string    `json:"prompt"`
	ModelResponse    string    `json:"model_response"`
	EvaluatorID      string    `json:"evaluator_id"`
	Helpfulness      int       `json:"helpfulness"`
	Accuracy         int       `json:"accuracy"`
	Clarity          int       `json:"clarity"`
	HasHallucination bool      `json:"has_hallucination"`
	HasUnsafeContent bool      `json:"has_unsafe_content"`
	ImprovedResponse string    `json:"improved_response"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewEvaluation builds an Evaluation from submitted input.
func NewEvaluation(id string, in EvaluationInput, ts time.Time) Evaluation {
	return Evaluation{
		ID:               id,
		ResponseID:       in.ResponseID,
		Prompt:           in.Prompt,
		ModelResponse:    in.ModelResponse,
		EvaluatorID:      in.EvaluatorID,
		Helpfulness:      in.Helpfulness,
		Accuracy:         in.Accuracy,
		Clarity:          in.Clarity,
		HasHallucination: in.HasHallucination,
		HasUnsafeContent: in.HasUnsafeContent,
		ImprovedResponse: in.ImprovedResponse,
		Timestamp:        ts,
	}
}

// MeanScore returns the mean of the three quality scores of one record.
func (e Evaluation) MeanScore() float64 {
	return float64(e.Helpfulness+e.Accuracy+e.Clarity) / 3
}
