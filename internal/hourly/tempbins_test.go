package hourly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spread(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func repeatValue(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBinSet_RightClosed(t *testing.T) {
	b := BinSet{Edges: []float64{30, 45, 55}}

	assert.Equal(t, 0, b.Bin(-40))
	assert.Equal(t, 0, b.Bin(30))
	assert.Equal(t, 1, b.Bin(30.0001))
	assert.Equal(t, 1, b.Bin(45))
	assert.Equal(t, 3, b.Bin(55.5))
	assert.Equal(t, 3, b.Bin(120))
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, "(-inf,30]", b.Label(0))
	assert.Equal(t, "(45,55]", b.Label(2))
	assert.Equal(t, "(55,+inf]", b.Label(3))
}

func TestFitBinSet_EveryTemperatureLandsInOneBin(t *testing.T) {
	temps := spread(10, 100, 500)
	set := fitBinSet(temps, DefaultBinOptions())

	require.Equal(t, DefaultBinEdges, set.Edges)
	total := 0
	for _, c := range set.Counts {
		total += c
	}
	assert.Equal(t, len(temps), total)
	for _, temp := range temps {
		b := set.Bin(temp)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, set.Len())
	}
	assert.Equal(t, 10.0, set.Min)
	assert.Equal(t, 100.0, set.Max)
}

func TestFitBinSet_MergesSparseBins(t *testing.T) {
	opts := DefaultBinOptions()

	t.Run("sparse first bin drops its right edge", func(t *testing.T) {
		temps := append(repeatValue(25, 5), spread(46, 100, 400)...)
		set := fitBinSet(temps, opts)
		// Both (-inf,30] and (-inf,45] are too sparse before 55 holds.
		assert.Equal(t, []float64{55, 65, 75, 90}, set.Edges)
		assert.GreaterOrEqual(t, set.Counts[0], opts.MinCount)
	})

	t.Run("sparse last bin drops its left edge", func(t *testing.T) {
		temps := append(spread(20, 89, 400), repeatValue(95, 5)...)
		set := fitBinSet(temps, opts)
		assert.Equal(t, []float64{30, 45, 55, 65, 75}, set.Edges)
	})

	t.Run("sparse middle bin drops its right edge", func(t *testing.T) {
		var temps []float64
		temps = append(temps, repeatValue(20, 30)...)
		temps = append(temps, repeatValue(40, 30)...)
		temps = append(temps, repeatValue(50, 5)...)
		temps = append(temps, repeatValue(60, 30)...)
		temps = append(temps, repeatValue(70, 30)...)
		temps = append(temps, repeatValue(80, 30)...)
		temps = append(temps, repeatValue(95, 30)...)
		set := fitBinSet(temps, opts)
		assert.Equal(t, []float64{30, 45, 65, 75, 90}, set.Edges)
		assert.Equal(t, []int{30, 30, 35, 30, 30, 30}, set.Counts)
	})

	t.Run("a tiny sample collapses to one bin", func(t *testing.T) {
		set := fitBinSet(spread(50, 60, 5), opts)
		assert.Empty(t, set.Edges)
		assert.Equal(t, []int{5}, set.Counts)
	})
}

func TestFitBinSet_Quantile(t *testing.T) {
	opts := DefaultBinOptions()
	opts.Strategy = BinQuantile
	opts.QuantileBins = 4

	set := fitBinSet(spread(0, 99, 400), opts)
	require.Len(t, set.Edges, 3)
	for _, c := range set.Counts {
		assert.InDelta(t, 100, c, 2)
	}
}

func TestBinSet_ClampsReportingTemperatures(t *testing.T) {
	set := fitBinSet(spread(40, 80, 300), DefaultBinOptions())

	assert.Equal(t, 0, set.Bin(-20))
	assert.True(t, set.Clamped(-20))
	assert.Equal(t, set.Len()-1, set.Bin(130))
	assert.True(t, set.Clamped(130))
	assert.False(t, set.Clamped(60))
	assert.Equal(t, set.Len()-1, set.Bin(math.Inf(1)))
}

func TestBinOptions_Validate(t *testing.T) {
	opts := DefaultBinOptions()
	opts.DefaultEdges = []float64{30, 30, 40}
	assert.ErrorIs(t, opts.validate(), ErrInvalidOptions)

	opts = DefaultBinOptions()
	opts.Strategy = "kmeans"
	assert.ErrorIs(t, opts.validate(), ErrInvalidOptions)

	opts = DefaultBinOptions()
	opts.MinCount = 0
	assert.ErrorIs(t, opts.validate(), ErrInvalidOptions)
}

func TestSegmentedTemperature_SumsToTemperature(t *testing.T) {
	edges := []float64{30, 45, 55, 65, 75, 90}
	for _, temp := range []float64{-10, 30, 50, 64.5, 91, 120} {
		dst := make([]float64, len(edges)+1)
		segmentedTemperature(dst, edges, temp)
		var sum float64
		for _, v := range dst {
			sum += v
		}
		assert.InDelta(t, temp, sum, 1e-9, "temperature %v", temp)
	}
}
