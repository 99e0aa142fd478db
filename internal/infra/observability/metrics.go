package observability

import (
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the sourcing backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	tokensUsed       *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	uploadFailures   prometheus.Counter
	aiChecksTotal    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sourcing_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_llm_tokens_total",
				Help: "Total LLM tokens consumed by the completeness check.",
			},
			[]string{"type"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_rfi_submissions_total",
				Help: "Total RFI submissions by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		uploadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sourcing_attachment_upload_failures_total",
				Help: "Total attachment uploads that failed (best-effort, submission continued).",
			},
		),
		aiChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_ai_checks_total",
				Help: "Total completeness checks by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrSubmission increments the RFI submission counter.
// mode is "guest" or "authenticated"; outcome is "success" or "error".
func (m *Metrics) IncrSubmission(mode, outcome string) {
	m.submissionsTotal.WithLabelValues(mode, outcome).Inc()
}

// IncrUploadFailure counts a failed best-effort attachment upload.
func (m *Metrics) IncrUploadFailure() {
	m.uploadFailures.Inc()
}

// IncrAICheck increments the completeness check counter.
// outcome is "ok", "fallback" or "error".
func (m *Metrics) IncrAICheck(outcome string) {
	m.aiChecksTotal.WithLabelValues(outcome).Inc()
}

// GetAISnapshot returns a snapshot of completeness-check metrics suitable
// for the admin dashboard endpoint.
func (m *Metrics) GetAISnapshot() *domain.AIMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	okChecks := getCounterValue(m.aiChecksTotal, "ok")
	fallbackChecks := getCounterValue(m.aiChecksTotal, "fallback")
	errorChecks := getCounterValue(m.aiChecksTotal, "error")
	totalChecks := okChecks + fallbackChecks + errorChecks
	cacheHits := getCounterValue(m.cacheHits, "completeness")
	cacheMisses := getCounterValue(m.cacheMisses, "completeness")

	totalTokens := promptTokens + completionTokens
	avgTokens := float64(0)
	errorRate := float64(0)
	fallbackRate := float64(0)
	cacheHitRate := float64(0)

	if totalChecks > 0 {
		avgTokens = totalTokens / totalChecks
		errorRate = errorChecks / totalChecks
		fallbackRate = fallbackChecks / totalChecks
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	// Estimated cost: ~$0.03/1k prompt tokens, ~$0.06/1k completion tokens (GPT-4o)
	estimatedCost := (promptTokens/1000)*0.03 + (completionTokens/1000)*0.06

	return &domain.AIMetrics{
		TotalChecks:      int64(totalChecks),
		ErrorRate:        errorRate,
		FallbackRate:     fallbackRate,
		AvgTokensPerCall: avgTokens,
		EstimatedCostUsd: estimatedCost,
		CacheHitRate:     cacheHitRate,
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
