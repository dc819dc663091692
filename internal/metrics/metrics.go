package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/feedback-lab/internal/models"
)

const (
	// OutcomeSuccess labels successful generations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed generations (provider or storage issues).
	OutcomeError = "error"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedback_lab",
			Name:      "generations_total",
			Help:      "Total number of generation requests handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	generationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedback_lab",
			Name:      "generation_seconds",
			Help:      "Generation latency in seconds, including the provider call.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	qualityWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedback_lab",
			Name:      "quality_warnings_total",
			Help:      "Quality warnings attached to generated responses, partitioned by warning.",
		},
		[]string{"warning"},
	)

	evaluationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feedback_lab",
			Name:      "evaluations_total",
			Help:      "Total number of evaluations accepted.",
		},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "feedback_lab",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency in seconds by route template, method and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "code"},
	)
)

// Register attaches feedback-lab collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		generationsTotal,
		generationDurationSeconds,
		qualityWarningsTotal,
		evaluationsTotal,
		httpRequestDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveGeneration records a generation duration and outcome label.
func ObserveGeneration(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	generationsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	generationDurationSeconds.Observe(duration.Seconds())
}

// ObserveWarnings counts each warning attached to a generated response.
func ObserveWarnings(warnings []models.QualityWarning) {
	for _, w := range warnings {
		qualityWarningsTotal.WithLabelValues(string(w)).Inc()
	}
}

// ObserveEvaluation counts an accepted evaluation.
func ObserveEvaluation() {
	evaluationsTotal.Inc()
}

// ObserveHTTPRequest records the latency of one HTTP request.
func ObserveHTTPRequest(route, method string, code int, duration time.Duration) {
	httpRequestDurationSeconds.WithLabelValues(route, method, strconv.Itoa(code)).Observe(duration.Seconds())
}
