package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// BatchExtractor reads up to batchSize raw fit requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw request into its fit result. An error means the
// message cannot be answered at all and is skipped.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.FitResult, error)
}

// BatchLoader writes fit results to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.FitResult) error
}

// Pipeline consumes fit requests, analyzes them and loads the results.
//
// Every decodable request is answered. A batch whose load fails is retried
// with backoff until it is written or the context ends, and offsets are only
// committed once its results are loaded.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	answered    atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness reports an error until the first batch of results is loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.answered.Load() {
		return errors.New("no fit results loaded yet")
	}
	return nil
}

// Run consumes and answers fit requests until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("baseline pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	wait := newRetryDelay()
	for ctx.Err() == nil {
		raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			p.logger.Error("fetch fit requests failed", "error", err, "retry_in", wait.current)
			wait.sleep(ctx)
		case len(raws) > 0:
			wait.reset()
			p.answer(ctx, raws, wait)
		}
	}
	p.logger.Info("baseline pipeline stopping", "reason", ctx.Err())
	return nil
}

// pending is an analyzed batch awaiting load and commit.
type pending struct {
	results []domain.FitResult
	raws    []domain.RawEvent
}

func (p *Pipeline) answer(ctx context.Context, raws []domain.RawEvent, wait *retryDelay) {
	start := time.Now()
	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	batch := p.analyze(ctx, raws)
	if len(batch.results) == 0 {
		return
	}
	if !p.load(ctx, batch.results, wait) {
		return
	}
	for _, raw := range batch.raws {
		p.commit(ctx, raw)
	}
	p.metrics.MessagesProduced.Add(float64(len(batch.results)))
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.answered.Store(true)
}

// analyze transforms each message. Undecodable ones are committed right away
// so they are not redelivered.
func (p *Pipeline) analyze(ctx context.Context, raws []domain.RawEvent) pending {
	batch := pending{
		results: make([]domain.FitResult, 0, len(raws)),
		raws:    make([]domain.RawEvent, 0, len(raws)),
	}
	for _, raw := range raws {
		result, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("skipping undecodable fit request",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		batch.results = append(batch.results, result)
		batch.raws = append(batch.raws, raw)
	}
	return batch
}

// load writes results, retrying with backoff. It returns false only when ctx
// ends before the write succeeds.
func (p *Pipeline) load(ctx context.Context, results []domain.FitResult, wait *retryDelay) bool {
	for {
		err := p.loader.LoadBatch(ctx, results)
		if err == nil {
			wait.reset()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load fit results failed", "error", err, "results", len(results), "retry_in", wait.current)
		if !wait.sleep(ctx) {
			return false
		}
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// retryDelay is an exponential backoff from 200ms doubling up to 5s.
type retryDelay struct {
	current time.Duration
}

const (
	firstRetryDelay = 200 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
)

func newRetryDelay() *retryDelay {
	return &retryDelay{current: firstRetryDelay}
}

func (d *retryDelay) reset() { d.current = firstRetryDelay }

// sleep waits the current delay and doubles it. It returns false if ctx ends
// first.
func (d *retryDelay) sleep(ctx context.Context) bool {
	timer := time.NewTimer(d.current)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	d.current = min(d.current*2, maxRetryDelay)
	return true
}
