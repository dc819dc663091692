package models

import "time"

// QualityWarning tags a likely defect in a generated response.
type QualityWarning string

const (
	WarningTooShort        QualityWarning = "too short"
	WarningRepeatedPhrases QualityWarning = "repeated phrases"
	WarningOffTopic        QualityWarning = "may not address prompt"
)

// GeneratedResponse is a single LLM completion together with its quality warnings.
type GeneratedResponse struct {
	ID              string           `json:"id"`
	Prompt          string           `json:"prompt"`
	Response        string           `json:"response"`
	Timestamp       time.Time        `json:"timestamp"`
	QualityWarnings []QualityWarning `json:"quality_warnings"`
}

// GenerateRequest is the body accepted by the generation endpoint.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}
