package influxdb

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattcarbon/resstock-dashboard/internal/config"
	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

var reportingStart = time.Date(2018, 7, 30, 4, 0, 0, 0, time.UTC)

func successfulResult() domain.FitResult {
	observed := 2.5
	uncertainty := 0.4
	return domain.FitResult{
		RequestID:      "req-1",
		BuildingID:     "bldg-100",
		Upgrade:        3,
		Status:         domain.StatusSucceeded,
		SegmentType:    "single",
		Features:       "bins",
		ReportingStart: reportingStart,
		BaselineHours:  672,
		Hours: []domain.HourResult{
			{Time: reportingStart, Temperature: 80, Observed: &observed, Predicted: 2.1, Segment: "all"},
			{Time: reportingStart.Add(time.Hour), Temperature: 95, Predicted: 3.0, Segment: "all", Extrapolated: true},
		},
		Savings:            0.4,
		MAPE:               16,
		RMSE:               0.4,
		ObservedHours:      1,
		SavingsHours:       1,
		MAPEHours:          1,
		SavingsUncertainty: &uncertainty,
	}
}

func fieldMap(t *testing.T, keys []string, values []any) map[string]any {
	t.Helper()
	require.Len(t, values, len(keys))
	m := make(map[string]any, len(keys))
	for i, k := range keys {
		m[k] = values[i]
	}
	return m
}

func TestResultPoints_Shape(t *testing.T) {
	points := ResultPoints(successfulResult())
	require.Len(t, points, 3)

	hour := points[0]
	assert.Equal(t, PredictionMeasurement, hour.Name())
	assert.True(t, reportingStart.Equal(hour.Time()))
	tags := map[string]string{}
	for _, tag := range hour.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"building_id": "bldg-100", "upgrade": "3", "segment": "all"}, tags)

	fields := map[string]any{}
	for _, f := range hour.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.InDelta(t, 2.1, fields["predicted"], 1e-12)
	assert.InDelta(t, 2.5, fields["observed"], 1e-12)
	assert.Equal(t, false, fields["extrapolated"])
	assert.Equal(t, "req-1", fields["request_id"])

	var unobserved []string
	for _, f := range points[1].FieldList() {
		unobserved = append(unobserved, f.Key)
	}
	assert.NotContains(t, unobserved, "observed")

	eval := points[2]
	assert.Equal(t, EvaluationMeasurement, eval.Name())
	evalFields := map[string]any{}
	for _, f := range eval.FieldList() {
		evalFields[f.Key] = f.Value
	}
	assert.InDelta(t, 16, evalFields["mape"], 1e-12)
	assert.InDelta(t, 0.4, evalFields["savings_uncertainty"], 1e-12)
	assert.Contains(t, evalFields, "baseline_hours")
	assert.Equal(t, "req-1", evalFields["request_id"])
	for _, tag := range eval.TagList() {
		assert.NotEqual(t, "request_id", tag.Key)
	}
}

func TestResultPoints_FailedResultHasNoPoints(t *testing.T) {
	assert.Nil(t, ResultPoints(domain.FitResult{Status: domain.StatusFailed}))
}

func TestWriter_LoadBatch(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
		path  string
		query string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, query = r.URL.Path, r.URL.RawQuery
		lines = append(lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	cfg := &config.Config{InfluxURL: srv.URL, InfluxToken: "token", InfluxOrg: "resstock", InfluxBucket: "baseline"}
	w := NewWriter(cfg, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	err := w.LoadBatch(context.Background(), []domain.FitResult{successfulResult(), {Status: domain.StatusFailed}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/v2/write", path)
	assert.Contains(t, query, "bucket=baseline")
	assert.Contains(t, query, "org=resstock")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], PredictionMeasurement+","))
	assert.True(t, strings.HasPrefix(lines[2], EvaluationMeasurement+","))
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.InfluxPointsWritten), 0)
}

func TestWriter_LoadBatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"unauthorized access"}`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	cfg := &config.Config{InfluxURL: srv.URL, InfluxToken: "bad", InfluxOrg: "resstock", InfluxBucket: "baseline"}
	w := NewWriter(cfg, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	err := w.LoadBatch(context.Background(), []domain.FitResult{successfulResult()})
	require.Error(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.InfluxWriteErrors), 0)
}

func TestWriter_EmptyBatchSkipsWrite(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := &config.Config{InfluxURL: srv.URL, InfluxToken: "token", InfluxOrg: "resstock", InfluxBucket: "baseline"}
	w := NewWriter(cfg, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	require.NoError(t, w.LoadBatch(context.Background(), []domain.FitResult{{Status: domain.StatusFailed}}))
	assert.False(t, called)
}
