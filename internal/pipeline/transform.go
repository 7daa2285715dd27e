package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// Analyzer answers one decoded fit request.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.FitRequest) domain.FitResult
}

// AnalysisTransformer implements Transformer by decoding the request and
// running the baseline model on it.
type AnalysisTransformer struct {
	analyzer Analyzer
	defaults domain.RequestDefaults
	metrics  *observability.Metrics
}

// NewTransformer creates an AnalysisTransformer. defaults fill the optional
// request fields.
func NewTransformer(analyzer Analyzer, defaults domain.RequestDefaults, metrics *observability.Metrics) *AnalysisTransformer {
	return &AnalysisTransformer{
		analyzer: analyzer,
		defaults: defaults,
		metrics:  metrics,
	}
}

// Transform decodes raw and analyzes it. A request that decodes but fails
// validation yields a failed result; only undecodable payloads return an error.
func (t *AnalysisTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.FitResult, error) {
	req, err := domain.ParseFitRequest(raw.Value, t.defaults)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidRequest) {
			return domain.FitResult{}, err
		}
		result := domain.FailedResult(req, domain.FailureInvalidRequest, err)
		t.record(result)
		return result, nil
	}

	start := time.Now()
	result := t.analyzer.Analyze(ctx, req)
	t.metrics.FitDuration.Observe(time.Since(start).Seconds())
	t.record(result)
	return result, nil
}

func (t *AnalysisTransformer) record(result domain.FitResult) {
	t.metrics.Results.WithLabelValues(result.Status, string(result.FailureReason)).Inc()
}
