package hourly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultOccupancyThreshold is the share of above-model hours an
	// hour-of-week needs before it is labelled occupied.
	DefaultOccupancyThreshold = 0.65

	// OccupancyDisabled labels every hour occupied, collapsing the model to
	// a single regime per segment.
	OccupancyDisabled = -1.0
)

// Degree-hour balance points (°F) of the occupancy usage model.
const (
	DefaultCoolingBase = 65.0
	DefaultHeatingBase = 50.0
)

// OccupancyOptions configures EstimateOccupancy.
type OccupancyOptions struct {
	Threshold   float64 `yaml:"threshold"`
	CoolingBase float64 `yaml:"cooling_base"`
	HeatingBase float64 `yaml:"heating_base"`
}

// DefaultOccupancyOptions returns the normal-mode threshold and balance points.
func DefaultOccupancyOptions() OccupancyOptions {
	return OccupancyOptions{
		Threshold:   DefaultOccupancyThreshold,
		CoolingBase: DefaultCoolingBase,
		HeatingBase: DefaultHeatingBase,
	}
}

// OccupancyLookup labels every (segment, hour-of-week) pair occupied or not.
// It is immutable once built.
type OccupancyLookup struct {
	threshold float64
	segments  map[string][HoursPerWeek]bool
}

// Occupied reports the label of an hour-of-week in a segment. Unknown
// segments are unoccupied.
func (l OccupancyLookup) Occupied(segmentID string, hourOfWeek int) bool {
	labels, ok := l.segments[segmentID]
	if !ok || hourOfWeek < 0 || hourOfWeek >= HoursPerWeek {
		return false
	}
	return labels[hourOfWeek]
}

// Segment returns a copy of one segment's labels.
func (l OccupancyLookup) Segment(segmentID string) ([HoursPerWeek]bool, bool) {
	labels, ok := l.segments[segmentID]
	return labels, ok
}

// Threshold returns the threshold the lookup was estimated with.
func (l OccupancyLookup) Threshold() float64 { return l.threshold }

// Disabled reports whether the lookup was built with the OccupancyDisabled sentinel.
func (l OccupancyLookup) Disabled() bool { return l.threshold == OccupancyDisabled }

// regimes reports which occupancy states a segment's lookup actually uses.
func (l OccupancyLookup) regimes(segmentID string) (occupied, unoccupied bool) {
	labels := l.segments[segmentID]
	for _, o := range labels {
		if o {
			occupied = true
		} else {
			unoccupied = true
		}
	}
	return occupied, unoccupied
}

// EstimateOccupancy infers the hour-of-week occupancy of each segment. For
// every segment a weighted usage ~ 1 + CDD + HDD model is fit over the
// degree-hours; an hour-of-week whose share of positive residuals exceeds the
// threshold is occupied. Hours-of-week never seen in a segment are unoccupied.
func EstimateOccupancy(obs []Observation, seg Segmentation, opts OccupancyOptions) (OccupancyLookup, error) {
	lookup := OccupancyLookup{
		threshold: opts.Threshold,
		segments:  make(map[string][HoursPerWeek]bool, len(seg.Segments)),
	}

	if opts.Threshold == OccupancyDisabled {
		var all [HoursPerWeek]bool
		for i := range all {
			all[i] = true
		}
		for _, s := range seg.Segments {
			lookup.segments[s.ID] = all
		}
		return lookup, nil
	}
	if opts.Threshold < 0 || opts.Threshold > 1 || math.IsNaN(opts.Threshold) {
		return OccupancyLookup{}, fmt.Errorf("%w: occupancy threshold %v outside [0, 1]", ErrInvalidOptions, opts.Threshold)
	}

	for _, s := range seg.Segments {
		labels, err := estimateSegmentOccupancy(obs, s, opts)
		if err != nil {
			return OccupancyLookup{}, fmt.Errorf("segment %s: %w", s.ID, err)
		}
		lookup.segments[s.ID] = labels
	}
	return lookup, nil
}

func estimateSegmentOccupancy(obs []Observation, s Segment, opts OccupancyOptions) ([HoursPerWeek]bool, error) {
	var labels [HoursPerWeek]bool

	rows := make([]SegmentHour, 0, len(s.Hours))
	for _, h := range s.Hours {
		if h.Weight > 0 {
			rows = append(rows, h)
		}
	}
	if len(rows) == 0 {
		return labels, fmt.Errorf("%w: no weighted hours", ErrInsufficientData)
	}

	x := mat.NewDense(len(rows), 3, nil)
	y := make([]float64, len(rows))
	w := make([]float64, len(rows))
	for i, h := range rows {
		o := obs[h.Index]
		x.Set(i, 0, 1)
		x.Set(i, 1, coolingDegreeHours(o.Temperature, opts.CoolingBase))
		x.Set(i, 2, heatingDegreeHours(o.Temperature, opts.HeatingBase))
		y[i] = o.Usage
		w[i] = h.Weight
	}

	beta, err := weightedLeastSquares(x, y, w)
	if err != nil {
		return labels, err
	}

	var positive, total [HoursPerWeek]int
	for i, h := range rows {
		fitted := beta[0] + beta[1]*x.At(i, 1) + beta[2]*x.At(i, 2)
		how := HourOfWeek(obs[h.Index].Time)
		total[how]++
		if y[i]-fitted > 0 {
			positive[how]++
		}
	}
	for how := range labels {
		if total[how] == 0 {
			continue
		}
		labels[how] = float64(positive[how])/float64(total[how]) > opts.Threshold
	}
	return labels, nil
}

func coolingDegreeHours(temp, base float64) float64 { return math.Max(temp-base, 0) }

func heatingDegreeHours(temp, base float64) float64 { return math.Max(base-temp, 0) }
