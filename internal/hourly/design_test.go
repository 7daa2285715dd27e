package hourly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var designStart = time.Date(2018, 7, 2, 0, 0, 0, 0, time.UTC)

// twoRegimeBaseline returns four weeks where 17:00-21:00 is occupied, with a
// temperature that cycles through 40-90 °F.
func twoRegimeBaseline(t *testing.T) ([]Observation, Segmentation, OccupancyLookup) {
	t.Helper()
	obs := make([]Observation, 28*24)
	for i := range obs {
		ts := designStart.Add(time.Duration(i) * time.Hour)
		obs[i] = Observation{Time: ts, Usage: 1, Temperature: 40 + float64(i%51)}
	}
	seg, err := SegmentTimeSeries(observationTimes(obs), SegmentSingle)
	require.NoError(t, err)

	var labels [HoursPerWeek]bool
	for how := range labels {
		h := how % 24
		labels[how] = h >= 17 && h < 21
	}
	occ := OccupancyLookup{threshold: DefaultOccupancyThreshold, segments: map[string][HoursPerWeek]bool{AllSegmentID: labels}}
	return obs, seg, occ
}

func TestBuildDesignMatrices_Bins(t *testing.T) {
	obs, seg, occ := twoRegimeBaseline(t)
	opts := DefaultBinOptions()
	opts.MinCount = 10
	bins, err := FitTemperatureBins(obs, seg, occ, opts)
	require.NoError(t, err)

	dms, err := BuildDesignMatrices(obs, seg, occ, bins, FeatureBins, DefaultMinCellObservations)
	require.NoError(t, err)
	require.Len(t, dms, 1)

	dm := dms[0]
	rows, cols := dm.X.Dims()
	assert.Equal(t, len(obs), rows)
	assert.Equal(t, dm.Layout.Width(), cols)
	assert.Len(t, dm.Layout.Columns(), cols)
	assert.Equal(t, "occupied_bin_0", dm.Layout.Columns()[0])

	for i := 0; i < rows; i++ {
		var sum float64
		for _, v := range dm.X.RawRowView(i) {
			sum += v
		}
		require.Equal(t, 1.0, sum, "row %d must hold exactly one indicator", i)
	}
}

func TestBuildDesignMatrices_CalTRACK(t *testing.T) {
	obs, seg, occ := twoRegimeBaseline(t)
	bins, err := FitTemperatureBins(obs, seg, occ, DefaultBinOptions())
	require.NoError(t, err)

	dms, err := BuildDesignMatrices(obs, seg, occ, bins, FeatureCalTRACK, DefaultMinCellObservations)
	require.NoError(t, err)

	layout := dms[0].Layout
	cols := layout.Columns()
	assert.Equal(t, "how_000", cols[0])
	assert.Equal(t, "how_167", cols[HoursPerWeek-1])
	assert.Equal(t, "occupied_temp_0", cols[HoursPerWeek])
	assert.Equal(t, HoursPerWeek+bins[AllSegmentID].Occupied.Len()+bins[AllSegmentID].Unoccupied.Len(), layout.Width())
}

func TestBuildDesignMatrices_SparseCellIsInsufficient(t *testing.T) {
	obs, seg, occ := twoRegimeBaseline(t)
	opts := DefaultBinOptions()
	opts.MinCount = 1
	bins, err := FitTemperatureBins(obs, seg, occ, opts)
	require.NoError(t, err)

	_, err = BuildDesignMatrices(obs, seg, occ, bins, FeatureBins, 10_000)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLayout_EncodeMissingRegime(t *testing.T) {
	set := BinSet{Edges: []float64{60}, Min: 50, Max: 70, Counts: []int{10, 10}}
	layout := newLayout(FeatureBins, TemperatureBins{Unoccupied: &set}, [HoursPerWeek]bool{})

	row := make([]float64, layout.Width())
	require.NoError(t, layout.Encode(row, 3, false, 65))
	assert.Equal(t, []float64{0, 1}, row)

	err := layout.Encode(row, 3, true, 65)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLayout_CalTRACKUnseenHourOfWeek(t *testing.T) {
	set := BinSet{Edges: []float64{60}, Counts: []int{10, 10}}
	var seen [HoursPerWeek]bool
	seen[5] = true
	layout := newLayout(FeatureCalTRACK, TemperatureBins{Occupied: &set}, seen)

	row := make([]float64, layout.Width())
	require.NoError(t, layout.Encode(row, 5, true, 70))
	assert.Equal(t, []float64{1, 60, 10}, row)

	assert.ErrorIs(t, layout.Encode(row, 6, true, 70), ErrInsufficientData)
}
