// Package influxdb writes fit results to InfluxDB v2 for dashboards.
package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/wattcarbon/resstock-dashboard/internal/config"
	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// Measurement names.
const (
	PredictionMeasurement = "baseline_prediction"
	EvaluationMeasurement = "baseline_evaluation"
)

// Writer stores successful fit results as InfluxDB points.
// It implements pipeline.BatchLoader.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewWriter creates a writer for the configured org and bucket.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		metrics:  metrics,
		logger:   logger,
	}
}

// Check verifies the server is reachable and healthy.
func (w *Writer) Check(ctx context.Context) error {
	health, err := w.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influxdb health: status %s", health.Status)
	}
	return nil
}

// LoadBatch writes one point per predicted hour and one evaluation point per
// successful result. Failed results are skipped.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.FitResult) error {
	var points []*write.Point
	for i := range results {
		points = append(points, ResultPoints(results[i])...)
	}
	if len(points) == 0 {
		return nil
	}
	if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
		w.metrics.InfluxWriteErrors.Inc()
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	w.metrics.InfluxPointsWritten.Add(float64(len(points)))
	w.logger.Debug("influxdb points written", "points", len(points), "results", len(results))
	return nil
}

// Close releases the client's connections.
func (w *Writer) Close() {
	w.client.Close()
}

// ResultPoints converts a result into its InfluxDB points. It returns nil
// for failed results. Series are keyed by building, upgrade and segment; the
// request ID is carried as a field.
func ResultPoints(r domain.FitResult) []*write.Point {
	if !r.Succeeded() {
		return nil
	}
	points := make([]*write.Point, 0, len(r.Hours)+1)
	for _, h := range r.Hours {
		fields := map[string]any{
			"predicted":    h.Predicted,
			"temperature":  h.Temperature,
			"occupied":     h.Occupied,
			"extrapolated": h.Extrapolated,
			"request_id":   r.RequestID,
		}
		if h.Observed != nil {
			fields["observed"] = *h.Observed
		}
		points = append(points, influxdb2.NewPoint(
			PredictionMeasurement,
			map[string]string{
				"building_id": r.BuildingID,
				"upgrade":     strconv.Itoa(r.Upgrade),
				"segment":     h.Segment,
			},
			fields,
			h.Time,
		))
	}

	fields := map[string]any{
		"savings":        r.Savings,
		"mape":           r.MAPE,
		"rmse":           r.RMSE,
		"baseline_hours": r.BaselineHours,
		"observed_hours": r.ObservedHours,
		"savings_hours":  r.SavingsHours,
		"mape_hours":     r.MAPEHours,
		"request_id":     r.RequestID,
	}
	if r.SavingsUncertainty != nil {
		fields["savings_uncertainty"] = *r.SavingsUncertainty
	}
	points = append(points, influxdb2.NewPoint(
		EvaluationMeasurement,
		map[string]string{
			"building_id":  r.BuildingID,
			"upgrade":      strconv.Itoa(r.Upgrade),
			"segment_type": r.SegmentType,
			"features":     r.Features,
		},
		fields,
		r.ReportingStart,
	))
	return points
}
