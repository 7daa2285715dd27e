package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly/hourlytest"
)

func writeSeriesCSV(t *testing.T, dir, name string, s hourly.Series) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"time", "value"}))
	for _, p := range s {
		require.NoError(t, w.Write([]string{p.Time.Format(time.RFC3339), strconv.FormatFloat(p.Value, 'f', -1, 64)}))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

// summerFiles writes 30 days of synthetic usage and temperature from 2018-07-02.
func summerFiles(t *testing.T) (usagePath, tempPath string) {
	t.Helper()
	usage, temperature := hourlytest.Generate(hourlytest.Summer(time.Date(2018, 7, 2, 0, 0, 0, 0, testZone(t)), 30, 7))
	dir := t.TempDir()
	return writeSeriesCSV(t, dir, "usage.csv", usage), writeSeriesCSV(t, dir, "temp.csv", temperature)
}

func TestPredictCmd_JSON(t *testing.T) {
	usagePath, tempPath := summerFiles(t)

	cmd := predictCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--usage", usagePath, "--temperature", tempPath, "--date", "2018-07-30", "--hours", "16-20", "--format", "json"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var result domain.FitResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, domain.StatusSucceeded, result.Status)
	assert.Equal(t, "local", result.BuildingID)
	assert.Len(t, result.Hours, 24)
	assert.Equal(t, 4, result.SavingsHours)
	assert.Equal(t, 672, result.BaselineHours)
}

func TestPredictCmd_TableAndCSV(t *testing.T) {
	usagePath, tempPath := summerFiles(t)

	for _, format := range []string{"table", "csv"} {
		t.Run(format, func(t *testing.T) {
			cmd := predictCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"--usage", usagePath, "--temperature", tempPath, "--date", "2018-07-30", "-f", format})
			require.NoError(t, cmd.ExecuteContext(context.Background()))
			assert.Contains(t, out.String(), "2018-07-30")
		})
	}
}

func TestPredictCmd_FailureReturnsError(t *testing.T) {
	usagePath, tempPath := summerFiles(t)

	cmd := predictCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--usage", usagePath, "--temperature", tempPath, "--date", "2019-07-30"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(domain.FailureAlignment))
}

func TestPredictCmd_NeedsTemperatureSource(t *testing.T) {
	usagePath, _ := summerFiles(t)

	cmd := predictCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--usage", usagePath, "--date", "2018-07-30"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--state and --county")
}

func TestBacktestCmd(t *testing.T) {
	usagePath, tempPath := summerFiles(t)

	cmd := backtestCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--usage", usagePath, "--temperature", tempPath, "--from", "2018-07-30", "--to", "2018-07-31", "--format", "json"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var report struct {
		Days    []backtestRow   `json:"days"`
		Summary backtestSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Days, 2)
	assert.Equal(t, 2, report.Summary.Succeeded)
	for _, d := range report.Days {
		assert.Equal(t, domain.StatusSucceeded, d.Status)
		assert.Positive(t, d.NaiveRMSE)
	}
	// The synthetic load tracks temperature, so the fitted model beats a flat mean.
	assert.Less(t, report.Summary.RMSE, report.Summary.NaiveRMSE)
}

func TestSummarize_IgnoresFailedDays(t *testing.T) {
	rows := []backtestRow{
		{Status: domain.StatusSucceeded, MAPE: 10, RMSE: 1, Savings: 2},
		{Status: domain.StatusSucceeded, MAPE: 20, RMSE: 3, Savings: 1},
		{Status: domain.StatusFailed, FailureReason: domain.FailureAlignment},
	}
	s := summarize(rows)
	assert.Equal(t, 3, s.Days)
	assert.Equal(t, 2, s.Succeeded)
	assert.InDelta(t, 15, s.MAPE, 1e-12)
	assert.InDelta(t, 2, s.RMSE, 1e-12)
	assert.InDelta(t, 3, s.Savings, 1e-12)
}
