package models

// AnalyticsSummary aggregates all evaluations. Top-level averages and rates
// are rounded to two decimals; EvaluatorStats.AvgRating is not.
type AnalyticsSummary struct {
	AvgHelpfulness    float64                   `json:"avg_helpfulness"`
	AvgAccuracy       float64                   `json:"avg_accuracy"`
	AvgClarity        float64                   `json:"avg_clarity"`
	HallucinationRate float64                   `json:"hallucination_rate"`
	SafetyIssueRate   float64                   `json:"safety_issue_rate"`
	TotalEvaluations  int                       `json:"total_evaluations"`
	AvgOriginalLength float64                   `json:"avg_original_length"`
	AvgImprovedLength float64                   `json:"avg_improved_length"`
	EvaluatorStats    map[string]EvaluatorStats `json:"evaluator_stats"`
}

// EvaluatorStats summarises the evaluations submitted by one evaluator.
type EvaluatorStats struct {
	Count     int     `json:"count"`
	AvgRating float64 `json:"avg_rating"`
}
