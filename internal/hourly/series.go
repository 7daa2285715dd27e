package hourly

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Point is one hourly reading.
type Point struct {
	Time  time.Time `json:"t"`
	Value float64   `json:"v"`
}

// Series is an ordered sequence of hourly points with unique instants.
type Series []Point

// NewSeries copies points, sorts them by time and rejects duplicate instants.
// Points keep their own location; hour-of-week and month are read in it.
func NewSeries(points []Point) (Series, error) {
	s := make(Series, len(points))
	copy(s, points)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	for i := 1; i < len(s); i++ {
		if s[i].Time.Equal(s[i-1].Time) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTimestamp, s[i].Time.Format(time.RFC3339))
		}
	}
	return s, nil
}

// Between returns the points in the half-open range [start, end).
func (s Series) Between(start, end time.Time) Series {
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(start) })
	hi := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(end) })
	if lo >= hi {
		return nil
	}
	out := make(Series, hi-lo)
	copy(out, s[lo:hi])
	return out
}

// In returns a copy of the series with every timestamp moved to loc.
func (s Series) In(loc *time.Location) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time.In(loc), Value: p.Value}
	}
	return out
}

// Values returns the point values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Map returns a copy of the series with f applied to every value.
func (s Series) Map(f func(float64) float64) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time, Value: f(p.Value)}
	}
	return out
}

// CelsiusToFahrenheit converts a temperature. NaN passes through.
func CelsiusToFahrenheit(c float64) float64 {
	if math.IsNaN(c) {
		return c
	}
	return c*9/5 + 32
}
