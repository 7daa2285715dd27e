package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// Analyzer fits a baseline model for each request and predicts its
// reporting window.
type Analyzer struct {
	weather    WeatherSource
	model      hourly.Options
	confidence float64
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer. model supplies every option a request
// cannot set itself (bins, sample floors, parallelism). weather may be nil,
// in which case requests must carry their own temperatures.
func NewAnalyzer(weather WeatherSource, model hourly.Options, confidence float64, logger *slog.Logger) *Analyzer {
	if confidence == 0 {
		confidence = hourly.DefaultConfidence
	}
	return &Analyzer{weather: weather, model: model, confidence: confidence, logger: logger}
}

// Analyze answers a validated request. Failures are reported in the result
// rather than returned.
func (a *Analyzer) Analyze(ctx context.Context, req FitRequest) FitResult {
	result, err := a.analyze(ctx, req)
	if err != nil {
		reason := ClassifyFailure(err)
		a.logger.Warn("fit request failed",
			"request_id", req.RequestID,
			"building_id", req.BuildingID,
			"failure_reason", reason,
			"error", err,
		)
		return FailedResult(req, reason, err)
	}
	return result
}

// ClassifyFailure maps an analysis error to its failure reason.
func ClassifyFailure(err error) FailureReason {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, hourly.ErrInvalidOptions), errors.Is(err, hourly.ErrDuplicateTimestamp):
		return FailureInvalidRequest
	case errors.Is(err, ErrWeatherUnavailable):
		return FailureWeatherUnavailable
	case errors.Is(err, hourly.ErrNoOverlap):
		return FailureAlignment
	case errors.Is(err, hourly.ErrInsufficientData):
		return FailureInsufficientData
	default:
		return FailureInternal
	}
}

func (a *Analyzer) analyze(ctx context.Context, req FitRequest) (FitResult, error) {
	if err := req.Validate(); err != nil {
		return FitResult{}, err
	}
	loc, err := LoadLocation(req.Timezone)
	if err != nil {
		return FitResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	win, err := req.windows(loc)
	if err != nil {
		return FitResult{}, err
	}

	usage, err := readingSeries(req.Usage, loc, nil)
	if err != nil {
		return FitResult{}, fmt.Errorf("usage: %w", err)
	}
	temperature, err := a.temperature(ctx, req, loc)
	if err != nil {
		return FitResult{}, err
	}

	prepared, err := hourly.Prepare(usage, temperature, win, hourly.AlignOptions{DropZeroUsage: req.electricity()})
	if err != nil {
		return FitResult{}, err
	}

	opts := a.modelOptions(req)
	start := time.Now()
	model, err := hourly.Fit(prepared.Baseline, opts)
	if err != nil {
		return FitResult{}, fmt.Errorf("fit baseline: %w", err)
	}

	reportingTemp := temperature.Between(win.Reporting.Start, win.Reporting.End)
	prediction, err := model.Predict(reportingTemp)
	if err != nil {
		return FitResult{}, err
	}
	prediction = prediction.WithObserved(usage.Between(win.Reporting.Start, win.Reporting.End))

	eval, err := hourly.Evaluate(prediction, req.hourRange(), model, a.confidence)
	if err != nil {
		return FitResult{}, err
	}

	a.logger.Debug("fit request analyzed",
		"request_id", req.RequestID,
		"building_id", req.BuildingID,
		"baseline_hours", len(prepared.Baseline),
		"segments", len(model.Segments),
		"duration", time.Since(start),
	)
	return buildResult(req, win, len(prepared.Baseline), model, prediction, eval), nil
}

// temperature returns the request's temperature series in °F, fetching it
// from the weather source when the request carries none.
func (a *Analyzer) temperature(ctx context.Context, req FitRequest, loc *time.Location) (hourly.Series, error) {
	if len(req.Temperature) > 0 {
		var convert func(float64) float64
		if req.TemperatureUnit == UnitCelsius {
			convert = hourly.CelsiusToFahrenheit
		}
		s, err := readingSeries(req.Temperature, loc, convert)
		if err != nil {
			return nil, fmt.Errorf("temperature: %w", err)
		}
		return s, nil
	}
	if a.weather == nil {
		return nil, fmt.Errorf("%w: request has no temperature and no weather source is configured", ErrWeatherUnavailable)
	}
	s, err := a.weather.HourlyTemperature(ctx, req.State, req.County, req.Year)
	if err != nil {
		if errors.Is(err, ErrWeatherUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: no weather rows for %s/%s %d", ErrWeatherUnavailable, req.State, req.County, req.Year)
	}
	return s.In(loc), nil
}

func (a *Analyzer) modelOptions(req FitRequest) hourly.Options {
	opts := a.model
	opts.SegmentType = hourly.SegmentType(req.SegmentType)
	opts.Features = hourly.FeatureSet(req.Features)
	if !req.occupancy() {
		opts.Occupancy.Threshold = hourly.OccupancyDisabled
	} else if opts.Occupancy.Threshold == hourly.OccupancyDisabled {
		opts.Occupancy.Threshold = hourly.DefaultOccupancyThreshold
	}
	return opts
}

func buildResult(req FitRequest, win hourly.WindowSpec, baselineHours int, model *hourly.Model, prediction hourly.Prediction, eval hourly.Evaluation) FitResult {
	r := newResult(req)
	r.Status = StatusSucceeded
	r.HourRange = req.hourRange()
	r.BaselineStart, r.BaselineEnd = win.Baseline.Start, win.Baseline.End
	r.ReportingStart, r.ReportingEnd = win.Reporting.Start, win.Reporting.End
	r.BaselineHours = baselineHours

	r.Hours = make([]HourResult, len(prediction.Hours))
	for i, h := range prediction.Hours {
		hr := HourResult{
			Time:         h.Time,
			Temperature:  h.Temperature,
			Predicted:    h.Predicted,
			Segment:      h.SegmentID,
			Occupied:     h.Occupied,
			Bin:          h.Bin,
			Extrapolated: h.Extrapolated,
		}
		if h.HasObserved {
			v := h.Observed
			hr.Observed = &v
		}
		r.Hours[i] = hr
	}

	r.Segments = make([]SegmentResult, len(model.Segments))
	for i, s := range model.Segments {
		r.Segments[i] = SegmentResult{
			ID:           s.ID,
			Month:        hourly.MonthAbbr(s.Month),
			Columns:      s.Layout.Columns(),
			Coefficients: s.Coefficients,
			Metrics:      s.Metrics,
		}
	}

	for _, s := range model.Segments {
		if vars, ok := model.Uncertainty[s.ID]; ok {
			r.Uncertainty = append(r.Uncertainty, vars)
		}
	}

	r.Savings = eval.Savings
	r.MAPE = eval.MAPE
	r.RMSE = eval.RMSE
	r.ObservedHours = eval.Hours
	r.SavingsHours = eval.SavingsHours
	r.MAPEHours = eval.MAPEHours
	r.SavingsUncertainty = eval.SavingsUncertainty
	r.SkippedSegments = model.Skipped
	r.ProcessedAt = clock.Now()
	return r
}
