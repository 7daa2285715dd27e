package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
)

// MultiLoader fans a batch out to several loaders in order. Every loader sees
// the batch even when an earlier one fails; the errors are joined.
type MultiLoader []BatchLoader

// LoadBatch implements BatchLoader.
func (m MultiLoader) LoadBatch(ctx context.Context, results []domain.FitResult) error {
	var errs []error
	for _, l := range m {
		if err := l.LoadBatch(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a loader whose failures are logged but never retried.
func BestEffort(l BatchLoader, name string, logger *slog.Logger) BatchLoader {
	return bestEffort{loader: l, name: name, logger: logger}
}

type bestEffort struct {
	loader BatchLoader
	name   string
	logger *slog.Logger
}

func (b bestEffort) LoadBatch(ctx context.Context, results []domain.FitResult) error {
	if err := b.loader.LoadBatch(ctx, results); err != nil {
		b.logger.Warn("best-effort load failed", "sink", b.name, "error", err, "batch_size", len(results))
	}
	return nil
}
