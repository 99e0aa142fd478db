package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"go.uber.org/zap"
)

// CompletenessService runs the advisory AI review of an RFI draft. The
// check never blocks submission: when the model is unavailable the buyer
// gets a locally assembled fallback report instead of an error.
type CompletenessService struct {
	checker port.CompletenessChecker
	cache   port.Cache[*domain.CompletenessReport]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCompletenessService creates the completeness service.
func NewCompletenessService(checker port.CompletenessChecker, cache port.Cache[*domain.CompletenessReport], metrics *observability.Metrics, logger *zap.Logger) *CompletenessService {
	return &CompletenessService{
		checker: checker,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Check analyses the draft. Identical drafts within the cache TTL reuse
// the previous report instead of spending tokens again.
func (s *CompletenessService) Check(ctx context.Context, req *domain.CompletenessRequest) (*domain.CompletenessReport, error) {
	ctx, span := tracer.Start(ctx, "Completeness.Check")
	defer span.End()

	key := requestKey(req)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("completeness")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("completeness")

	report, usage, err := s.checker.Check(ctx, req)
	if err != nil {
		s.logger.Warn("completeness check unavailable, using fallback", zap.Error(err))
		s.metrics.IncrAICheck("fallback")
		s.metrics.IncrExternalError("openai")
		return fallbackReport(req), nil
	}

	if usage != nil {
		s.metrics.RecordTokens(usage.PromptTokens, usage.CompletionTokens)
	}
	s.metrics.IncrAICheck("ok")
	s.cache.Set(key, report)
	return report, nil
}

// requestKey hashes the draft content so identical drafts share a cache slot.
func requestKey(req *domain.CompletenessRequest) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return "completeness:" + hex.EncodeToString(sum[:])
}

// fallbackReport assembles the summary locally from the buyer's own
// fields. Status "unavailable" tells the client the AI review was skipped,
// not that the draft is fine.
func fallbackReport(req *domain.CompletenessRequest) *domain.CompletenessReport {
	orEmpty := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return "Not specified"
		}
		return v
	}

	markets := "Not specified"
	if len(req.DestinationMarkets) > 0 {
		markets = strings.Join(req.DestinationMarkets, ", ")
	}
	volume := strings.TrimSpace(req.EstimatedVolume + " " + req.VolumeUnit)

	return &domain.CompletenessReport{
		Status:    "unavailable",
		Issues:    []string{},
		Questions: []string{},
		Summary: map[string]string{
			"Product":             orEmpty(req.ProductName),
			"Specifications":      orEmpty(req.Requirements),
			"Volumes":             orEmpty(volume),
			"Target Price":        orEmpty(req.GuidancePrice),
			"Timeline":            orEmpty(req.Timeline),
			"Destination Markets": markets,
		},
		Fallback: true,
	}
}
