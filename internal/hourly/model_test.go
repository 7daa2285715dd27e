package hourly_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly/hourlytest"
)

// summerDay prepares a 28-day baseline and the following reporting day.
func summerDay(t *testing.T, start time.Time, seed uint64) hourly.Prepared {
	t.Helper()
	usage, temp := hourlytest.Generate(hourlytest.Summer(start, 29, seed))
	win, err := hourly.DayWindows(start.AddDate(0, 0, 28), 28)
	require.NoError(t, err)
	p, err := hourly.Prepare(usage, temp, win, hourly.AlignOptions{DropZeroUsage: true})
	require.NoError(t, err)
	require.Len(t, p.Baseline, 28*24)
	require.Len(t, p.Reporting, 24)
	return p
}

func constantMeanRMSE(t *testing.T, baseline []hourly.Observation, observed []float64) float64 {
	t.Helper()
	var mean float64
	for _, o := range baseline {
		mean += o.Usage
	}
	mean /= float64(len(baseline))
	naive := make([]float64, len(observed))
	for i := range naive {
		naive[i] = mean
	}
	rmse, err := hourly.RMSE(naive, observed)
	require.NoError(t, err)
	return rmse
}

func TestFit_EndToEndBeatsConstantMean(t *testing.T) {
	for _, features := range []hourly.FeatureSet{hourly.FeatureBins, hourly.FeatureCalTRACK} {
		t.Run(string(features), func(t *testing.T) {
			p := summerDay(t, t0, 42)
			opts := hourly.DefaultOptions()
			opts.Features = features

			model, err := hourly.Fit(p.Baseline, opts)
			require.NoError(t, err)

			pred, err := model.Predict(p.ReportingTemperature())
			require.NoError(t, err)
			pred = pred.WithObserved(p.ReportingUsage())

			observed := pred.Observed().Values()
			modelRMSE, err := hourly.RMSE(pred.Predicted().Values(), observed)
			require.NoError(t, err)
			assert.Less(t, modelRMSE, constantMeanRMSE(t, p.Baseline, observed))
		})
	}
}

func TestFit_Deterministic(t *testing.T) {
	p := summerDay(t, t0, 3)
	opts := hourly.DefaultOptions()
	opts.SegmentType = hourly.SegmentThreeMonthWeighted

	sequential := opts
	sequential.Parallelism = 1
	a, err := hourly.Fit(p.Baseline, sequential)
	require.NoError(t, err)

	parallel := opts
	parallel.Parallelism = 8
	b, err := hourly.Fit(p.Baseline, parallel)
	require.NoError(t, err)

	assert.Equal(t, a.Segments, b.Segments)
	assert.Equal(t, a.Uncertainty, b.Uncertainty)

	pa, err := a.Predict(p.ReportingTemperature())
	require.NoError(t, err)
	pb, err := b.Predict(p.ReportingTemperature())
	require.NoError(t, err)
	assert.Equal(t, pa.Predicted(), pb.Predicted())
}

func TestFit_InsufficientBaseline(t *testing.T) {
	usage, temp := hourlytest.Generate(hourlytest.Summer(t0, 4, 1))
	obs := hourlytest.Observations(usage, temp)

	_, err := hourly.Fit(obs, hourly.DefaultOptions())
	assert.ErrorIs(t, err, hourly.ErrInsufficientData)
}

func TestFit_InvalidOptions(t *testing.T) {
	p := summerDay(t, t0, 1)
	opts := hourly.DefaultOptions()
	opts.Features = "splines"

	_, err := hourly.Fit(p.Baseline, opts)
	assert.ErrorIs(t, err, hourly.ErrInvalidOptions)
}

func TestFit_ThreeMonthSkipsSparseSegments(t *testing.T) {
	start := time.Date(2018, 7, 8, 0, 0, 0, 0, time.UTC)
	p := summerDay(t, start, 9)
	opts := hourly.DefaultOptions()
	opts.SegmentType = hourly.SegmentThreeMonthWeighted

	model, err := hourly.Fit(p.Baseline, opts)
	require.NoError(t, err)

	// August holds four baseline days, too few to centre a September model on.
	assert.Equal(t, []string{"aug-sep-oct-weighted"}, model.Skipped)
	var ids []string
	for _, s := range model.Segments {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"may-jun-jul-weighted", "jun-jul-aug-weighted", "jul-aug-sep-weighted"}, ids)

	assert.Contains(t, model.Uncertainty, "jun-jul-aug-weighted")
	assert.Contains(t, model.Uncertainty, "jul-aug-sep-weighted")
	assert.Equal(t, time.July, model.Uncertainty["jun-jul-aug-weighted"].Month)

	winter := hourly.Series{{Time: time.Date(2018, 12, 24, 12, 0, 0, 0, time.UTC), Value: 30}}
	_, err = model.Predict(winter)
	assert.ErrorIs(t, err, hourly.ErrInsufficientData)
}

func TestModel_ThreeMonthUncertaintyUsesSegmentFit(t *testing.T) {
	p := summerDay(t, time.Date(2018, 7, 8, 0, 0, 0, 0, time.UTC), 9)
	opts := hourly.DefaultOptions()
	opts.SegmentType = hourly.SegmentThreeMonthWeighted

	model, err := hourly.Fit(p.Baseline, opts)
	require.NoError(t, err)

	seg, ok := model.Segment("jun-jul-aug-weighted")
	require.True(t, ok)
	vars, ok := model.Uncertainty["jun-jul-aug-weighted"]
	require.True(t, ok)
	assert.Equal(t, seg.Metrics.N, vars.N)
	assert.InDelta(t, seg.Metrics.NPrime, vars.NPrime, 1e-12)

	var july []hourly.Observation
	for _, o := range p.Baseline {
		if o.Time.Month() == time.July {
			july = append(july, o)
		}
	}
	require.NotEmpty(t, july)
	assert.Greater(t, vars.N, len(july), "the segment fit also weights August hours")

	var usage, sse float64
	for _, o := range july {
		pred, err := model.Predict(hourly.Series{{Time: o.Time, Value: o.Temperature}})
		require.NoError(t, err)
		r := o.Usage - pred.Hours[0].Predicted
		usage += o.Usage
		sse += r * r
	}
	assert.InDelta(t, usage/float64(len(july)), vars.MeanBaselineUsage, 1e-9)
	assert.InDelta(t, sse/float64(len(july)), vars.MSE, 1e-9)
}

func TestFit_OccupancySentinelUsesOneRegime(t *testing.T) {
	p := summerDay(t, t0, 5)
	opts := hourly.DefaultOptions()
	opts.Occupancy.Threshold = hourly.OccupancyDisabled

	model, err := hourly.Fit(p.Baseline, opts)
	require.NoError(t, err)

	cells := model.Cells()
	require.Len(t, cells, 1)
	cell, ok := cells[hourly.CellKey{SegmentID: hourly.AllSegmentID, Occupied: true}]
	require.True(t, ok)
	assert.Len(t, cell.Coefficients, cell.Bins.Len())
	assert.Equal(t, cell.Bins.Counts, cell.Counts)

	pred, err := model.Predict(p.ReportingTemperature())
	require.NoError(t, err)
	for _, h := range pred.Hours {
		assert.True(t, h.Occupied)
	}
}

func TestModel_PredictClampsOutOfRangeTemperatures(t *testing.T) {
	p := summerDay(t, t0, 11)
	model, err := hourly.Fit(p.Baseline, hourly.DefaultOptions())
	require.NoError(t, err)

	reporting := p.Reporting[0].Time
	pred, err := model.Predict(hourly.Series{
		{Time: reporting, Value: -40},
		{Time: reporting.Add(time.Hour), Value: 140},
		{Time: reporting.Add(2 * time.Hour), Value: p.Reporting[2].Temperature},
	})
	require.NoError(t, err)
	require.Len(t, pred.Hours, 3)

	cold, hot := pred.Hours[0], pred.Hours[1]
	assert.Equal(t, 0, cold.Bin)
	assert.True(t, cold.Extrapolated)
	assert.True(t, hot.Extrapolated)
	set, ok := model.Cells()[hourly.CellKey{SegmentID: hot.SegmentID, Occupied: hot.Occupied}]
	require.True(t, ok)
	assert.Equal(t, set.Bins.Len()-1, hot.Bin)
	assert.Equal(t, set.Coefficients[hot.Bin], hot.Predicted)
}

func TestModel_UncertaintyVars(t *testing.T) {
	p := summerDay(t, t0, 13)
	model, err := hourly.Fit(p.Baseline, hourly.DefaultOptions())
	require.NoError(t, err)

	vars, ok := model.Uncertainty[hourly.AllSegmentID]
	require.True(t, ok)
	assert.Equal(t, len(p.Baseline), vars.N)
	assert.Greater(t, vars.NPrime, 0.0)
	assert.Greater(t, vars.MSE, 0.0)

	var mean float64
	for _, o := range p.Baseline {
		mean += o.Usage
	}
	assert.InDelta(t, mean/float64(len(p.Baseline)), vars.MeanBaselineUsage, 1e-9)
}
