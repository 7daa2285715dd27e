package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/wattcarbon/resstock-dashboard/internal/adapter/http"
	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly/hourlytest"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubAnalyzer struct {
	result domain.FitResult
	calls  int
}

func (s *stubAnalyzer) Analyze(_ context.Context, req domain.FitRequest) domain.FitResult {
	s.calls++
	r := s.result
	r.RequestID = req.RequestID
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error, analyzer httpadapter.Analyzer) (*httpadapter.Server, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	srv := httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, analyzer, domain.DefaultRequestDefaults(), metrics, discardLogger())
	return srv, metrics
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(nil, &stubAnalyzer{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(nil, &stubAnalyzer{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(fmt.Errorf("pipeline has not loaded any results yet"), &stubAnalyzer{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(nil, &stubAnalyzer{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPredictions_InvalidJSON(t *testing.T) {
	analyzer := &stubAnalyzer{}
	srv, metrics := newTestServer(nil, analyzer)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, analyzer.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPPredictions.WithLabelValues("rejected")), 0)
}

func TestPredictions_InvalidRequest(t *testing.T) {
	analyzer := &stubAnalyzer{}
	srv, _ := newTestServer(nil, analyzer)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(`{"request_id":"req-1"}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, analyzer.calls)

	var result domain.FitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, domain.FailureInvalidRequest, result.FailureReason)
}

func TestPredictions_FailureStatuses(t *testing.T) {
	tests := []struct {
		reason domain.FailureReason
		want   int
	}{
		{domain.FailureInsufficientData, http.StatusUnprocessableEntity},
		{domain.FailureAlignment, http.StatusUnprocessableEntity},
		{domain.FailureWeatherUnavailable, http.StatusBadGateway},
		{domain.FailureInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			analyzer := &stubAnalyzer{result: domain.FitResult{Status: domain.StatusFailed, FailureReason: tt.reason}}
			srv, metrics := newTestServer(nil, analyzer)
			rec := httptest.NewRecorder()

			body := `{"request_id":"req-1","building_id":"b","state":"NY","county":"G3600610","date":"2018-07-30","usage":[{"time":"2018-07-01T00:00:00","value":1}]}`
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(body)))

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, 1, analyzer.calls)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPPredictions.WithLabelValues(domain.StatusFailed)), 0)
		})
	}
}

func TestPredictions_EndToEnd(t *testing.T) {
	loc, err := domain.LoadLocation(domain.DefaultTimezone)
	require.NoError(t, err)
	usage, temp := hourlytest.Generate(hourlytest.Summer(time.Date(2018, 7, 2, 0, 0, 0, 0, loc), 29, 21))

	toReadings := func(s hourly.Series) []domain.Reading {
		out := make([]domain.Reading, len(s))
		for i, p := range s {
			out[i] = domain.Reading{Time: p.Time.Format(time.RFC3339), Value: p.Value}
		}
		return out
	}
	body, err := json.Marshal(domain.FitRequest{
		RequestID:   "req-live",
		BuildingID:  "bldg-1",
		Date:        "2018-07-30",
		HourRange:   &hourly.HourRange{Start: 16, End: 20},
		Usage:       toReadings(usage),
		Temperature: toReadings(temp),
	})
	require.NoError(t, err)

	analyzer := domain.NewAnalyzer(nil, hourly.DefaultOptions(), hourly.DefaultConfidence, discardLogger())
	srv, _ := newTestServer(nil, analyzer)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predictions", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result domain.FitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, domain.StatusSucceeded, result.Status)
	assert.Len(t, result.Hours, 24)
	assert.Equal(t, 4, result.SavingsHours)
}
