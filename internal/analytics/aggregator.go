package analytics

import (
	"math"
	"strings"

	"github.com/miradorstack/feedback-lab/internal/models"
)

// Aggregate reduces evaluations into an AnalyticsSummary in a single pass.
// The input is not modified or retained.
func Aggregate(evaluations []models.Evaluation) models.AnalyticsSummary {
	if len(evaluations) == 0 {
		return emptySummary()
	}

	var totals struct {
		helpfulness    int
		accuracy       int
		clarity        int
		hallucinations int
		unsafe         int
		originalWords  int
		improvedWords  int
	}
	evaluators := make(map[string]*evaluatorAggregate)

	for _, e := range evaluations {
		totals.helpfulness += e.Helpfulness
		totals.accuracy += e.Accuracy
		totals.clarity += e.Clarity
		if e.HasHallucination {
			totals.hallucinations++
		}
		if e.HasUnsafeContent {
			totals.unsafe++
		}
		totals.originalWords += wordCount(e.ModelResponse)
		totals.improvedWords += wordCount(e.ImprovedResponse)

		agg := ensureAggregate(evaluators, e.EvaluatorID)
		agg.count++
		agg.ratingSum += e.MeanScore()
	}

	n := float64(len(evaluations))
	stats := make(map[string]models.EvaluatorStats, len(evaluators))
	for id, agg := range evaluators {
		stats[id] = agg.finalize()
	}

	return models.AnalyticsSummary{
		AvgHelpfulness:    round2(float64(totals.helpfulness) / n),
		AvgAccuracy:       round2(float64(totals.accuracy) / n),
		AvgClarity:        round2(float64(totals.clarity) / n),
		HallucinationRate: round2(float64(totals.hallucinations) / n * 100),
		SafetyIssueRate:   round2(float64(totals.unsafe) / n * 100),
		TotalEvaluations:  len(evaluations),
		AvgOriginalLength: round2(float64(totals.originalWords) / n),
		AvgImprovedLength: round2(float64(totals.improvedWords) / n),
		EvaluatorStats:    stats,
	}
}

func emptySummary() models.AnalyticsSummary {
	return models.AnalyticsSummary{EvaluatorStats: map[string]models.EvaluatorStats{}}
}

type evaluatorAggregate struct {
	count     int
	ratingSum float64
}

func ensureAggregate(m map[string]*evaluatorAggregate, evaluatorID string) *evaluatorAggregate {
	agg, ok := m[evaluatorID]
	if !ok {
		agg = &evaluatorAggregate{}
		m[evaluatorID] = agg
	}
	return agg
}

// finalize leaves AvgRating unrounded, unlike the top-level averages.
func (agg *evaluatorAggregate) finalize() models.EvaluatorStats {
	return models.EvaluatorStats{
		Count:     agg.count,
		AvgRating: agg.ratingSum / float64(agg.count),
	}
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
