package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// Result statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// FailureReason classifies why a request produced no prediction.
type FailureReason string

const (
	FailureInsufficientData   FailureReason = "insufficient_data"
	FailureAlignment          FailureReason = "alignment_failure"
	FailureWeatherUnavailable FailureReason = "weather_unavailable"
	FailureInvalidRequest     FailureReason = "invalid_request"
	FailureInternal           FailureReason = "internal_error"
)

// HourResult is one reporting hour of a fit result.
type HourResult struct {
	Time         time.Time `json:"time"`
	Temperature  float64   `json:"temperature"`
	Observed     *float64  `json:"observed,omitempty"`
	Predicted    float64   `json:"predicted"`
	Segment      string    `json:"segment"`
	Occupied     bool      `json:"occupied"`
	Bin          int       `json:"bin"`
	Extrapolated bool      `json:"extrapolated,omitempty"`
}

// SegmentResult describes one fitted segment.
type SegmentResult struct {
	ID           string            `json:"id"`
	Month        string            `json:"month,omitempty"`
	Columns      []string          `json:"columns"`
	Coefficients []float64         `json:"coefficients"`
	Metrics      hourly.FitMetrics `json:"metrics"`
}

// FitResult is the answer to one FitRequest.
type FitResult struct {
	RequestID  string `json:"request_id"`
	BuildingID string `json:"building_id"`
	Upgrade    int    `json:"upgrade"`
	State      string `json:"state,omitempty"`
	County     string `json:"county,omitempty"`
	Date       string `json:"date,omitempty"`

	Status        string        `json:"status"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	Error         string        `json:"error,omitempty"`

	SegmentType string           `json:"segment_type,omitempty"`
	Features    string           `json:"features,omitempty"`
	HourRange   hourly.HourRange `json:"hour_range"`

	BaselineStart  time.Time `json:"baseline_start,omitzero"`
	BaselineEnd    time.Time `json:"baseline_end,omitzero"`
	BaselineHours  int       `json:"baseline_hours,omitempty"`
	ReportingStart time.Time `json:"reporting_start,omitzero"`
	ReportingEnd   time.Time `json:"reporting_end,omitzero"`

	Hours       []HourResult             `json:"hours,omitempty"`
	Segments    []SegmentResult          `json:"segments,omitempty"`
	Uncertainty []hourly.UncertaintyVars `json:"uncertainty,omitempty"`

	Savings            float64  `json:"savings"`
	MAPE               float64  `json:"mape"`
	RMSE               float64  `json:"rmse"`
	ObservedHours      int      `json:"observed_hours"`
	SavingsHours       int      `json:"savings_hours"`
	MAPEHours          int      `json:"mape_hours"`
	SavingsUncertainty *float64 `json:"savings_uncertainty,omitempty"`
	SkippedSegments    []string `json:"skipped_segments,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Succeeded reports whether the result carries a prediction.
func (r FitResult) Succeeded() bool { return r.Status == StatusSucceeded }

// Key returns the message key of the result: the request id, or the building
// id for requests that never had one.
func (r FitResult) Key() string {
	if r.RequestID != "" {
		return r.RequestID
	}
	return r.BuildingID
}

// SerializeFitResult marshals a result into an output event keyed by request.
func SerializeFitResult(result FitResult) (OutputEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize fit result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(result.Key()),
		Value: data,
		Headers: map[string]string{
			"status":       result.Status,
			"building_id":  result.BuildingID,
			"processed_at": result.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

// newResult echoes the identifying fields of a request.
func newResult(req FitRequest) FitResult {
	r := FitResult{
		RequestID:   req.RequestID,
		BuildingID:  req.BuildingID,
		Upgrade:     req.Upgrade,
		State:       req.State,
		County:      req.County,
		Date:        req.Date,
		SegmentType: req.SegmentType,
		Features:    req.Features,
		HourRange:   req.hourRange(),
	}
	return r
}

// FailedResult builds the failed answer to a request.
func FailedResult(req FitRequest, reason FailureReason, err error) FitResult {
	r := newResult(req)
	r.Status = StatusFailed
	r.FailureReason = reason
	if err != nil {
		r.Error = err.Error()
	}
	r.ProcessedAt = clock.Now()
	return r
}
