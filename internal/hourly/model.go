package hourly

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sample-size floors.
const (
	DefaultMinBaselineHours = HoursPerWeek
	DefaultMinSegmentHours  = HoursPerWeek
)

// Options configures Fit.
type Options struct {
	SegmentType         SegmentType      `yaml:"segment_type"`
	Features            FeatureSet       `yaml:"features"`
	Occupancy           OccupancyOptions `yaml:"occupancy"`
	Bins                BinOptions       `yaml:"bins"`
	MinBaselineHours    int              `yaml:"min_baseline_hours"`
	MinSegmentHours     int              `yaml:"min_segment_hours"`
	MinCellObservations int              `yaml:"min_cell_observations"`
	// Parallelism caps concurrent segment fits; zero uses GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`
}

// DefaultOptions returns a single-segment bins model with occupancy estimation.
func DefaultOptions() Options {
	return Options{
		SegmentType:         SegmentSingle,
		Features:            FeatureBins,
		Occupancy:           DefaultOccupancyOptions(),
		Bins:                DefaultBinOptions(),
		MinBaselineHours:    DefaultMinBaselineHours,
		MinSegmentHours:     DefaultMinSegmentHours,
		MinCellObservations: DefaultMinCellObservations,
	}
}

// Validate checks the options for values Fit cannot work with.
func (o Options) Validate() error {
	if _, err := ParseSegmentType(string(o.SegmentType)); err != nil {
		return err
	}
	if _, err := ParseFeatureSet(string(o.Features)); err != nil {
		return err
	}
	if t := o.Occupancy.Threshold; t != OccupancyDisabled && (t < 0 || t > 1) {
		return fmt.Errorf("%w: occupancy threshold %v outside [0, 1]", ErrInvalidOptions, t)
	}
	if err := o.Bins.validate(); err != nil {
		return err
	}
	if o.MinBaselineHours < 1 || o.MinSegmentHours < 1 || o.MinCellObservations < 1 {
		return fmt.Errorf("%w: minimum sample sizes must be positive", ErrInvalidOptions)
	}
	if o.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidOptions)
	}
	return nil
}

// SegmentModel is the fitted regression of one segment.
type SegmentModel struct {
	ID           string
	Month        time.Month
	Layout       Layout
	Bins         TemperatureBins
	Coefficients []float64
	Metrics      FitMetrics
}

// CellKey addresses one (segment, occupancy) cell of a model.
type CellKey struct {
	SegmentID string
	Occupied  bool
}

// CellModel is the binning and coefficients of one cell.
type CellModel struct {
	Bins         BinSet
	Coefficients []float64
	Counts       []int
}

// UncertaintyVars are the baseline residual statistics of one prediction
// segment, used for savings confidence intervals.
type UncertaintyVars struct {
	SegmentID         string     `json:"segment_id"`
	Month             time.Month `json:"month,omitempty"`
	MeanBaselineUsage float64    `json:"mean_baseline_usage"`
	N                 int        `json:"n"`
	NPrime            float64    `json:"n_prime"`
	MSE               float64    `json:"mse"`
}

// Model is a fitted baseline model. It is immutable and safe for concurrent use.
type Model struct {
	SegmentType SegmentType
	Features    FeatureSet
	Occupancy   OccupancyLookup
	Segments    []SegmentModel
	// Skipped lists segments excluded for having too few baseline hours,
	// in calendar order.
	Skipped     []string
	Uncertainty map[string]UncertaintyVars

	index map[string]int
}

// Fit builds a model from aligned baseline observations. The stages run in
// order: segmentation, occupancy, temperature bins, design matrices, per
// segment regression and finally the residual statistics.
func Fit(baseline []Observation, opts Options) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(baseline) < opts.MinBaselineHours {
		return nil, fmt.Errorf("%w: baseline has %d hours, need %d",
			ErrInsufficientData, len(baseline), opts.MinBaselineHours)
	}
	segmentType, _ := ParseSegmentType(string(opts.SegmentType))
	features, _ := ParseFeatureSet(string(opts.Features))

	all, err := SegmentTimeSeries(observationTimes(baseline), segmentType)
	if err != nil {
		return nil, err
	}
	seg, skipped := all.withMinHours(opts.MinSegmentHours)
	if len(seg.Segments) == 0 {
		return nil, fmt.Errorf("%w: no segment has %d baseline hours", ErrInsufficientData, opts.MinSegmentHours)
	}

	occ, err := EstimateOccupancy(baseline, seg, opts.Occupancy)
	if err != nil {
		return nil, fmt.Errorf("estimate occupancy: %w", err)
	}
	bins, err := FitTemperatureBins(baseline, seg, occ, opts.Bins)
	if err != nil {
		return nil, fmt.Errorf("fit temperature bins: %w", err)
	}
	matrices, err := BuildDesignMatrices(baseline, seg, occ, bins, features, opts.MinCellObservations)
	if err != nil {
		return nil, fmt.Errorf("build design matrices: %w", err)
	}
	fits, err := fitSegments(matrices, opts.Parallelism)
	if err != nil {
		return nil, err
	}

	m := &Model{
		SegmentType: segmentType,
		Features:    features,
		Occupancy:   occ,
		Segments:    make([]SegmentModel, len(fits)),
		Skipped:     skipped,
		index:       make(map[string]int, len(fits)),
	}
	for i, f := range fits {
		m.Segments[i] = SegmentModel{
			ID:           f.SegmentID,
			Month:        seg.Segments[i].Month,
			Layout:       matrices[i].Layout,
			Bins:         bins[f.SegmentID],
			Coefficients: f.Coefficients,
			Metrics:      f.Metrics,
		}
		m.index[f.SegmentID] = i
	}
	m.Uncertainty = m.baselineUncertainty(baseline)
	return m, nil
}

// fitSegments solves every matrix concurrently. Results keep matrix order.
func fitSegments(matrices []DesignMatrix, parallelism int) ([]SegmentFit, error) {
	if parallelism == 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	fits := make([]SegmentFit, len(matrices))
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, dm := range matrices {
		g.Go(func() error {
			f, err := FitSegment(dm)
			if err != nil {
				return fmt.Errorf("fit segment %s: %w", dm.SegmentID, err)
			}
			fits[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fits, nil
}

// Segment returns the fitted model of a segment.
func (m *Model) Segment(id string) (SegmentModel, bool) {
	i, ok := m.index[id]
	if !ok {
		return SegmentModel{}, false
	}
	return m.Segments[i], true
}

// Cells returns the model as (segment, occupancy) cells. For the bins
// features a cell's coefficients are its per-bin levels; for caltrack they
// are the per-bin temperature slopes.
func (m *Model) Cells() map[CellKey]CellModel {
	cells := make(map[CellKey]CellModel)
	for _, s := range m.Segments {
		for _, occupied := range []bool{true, false} {
			offset, set, ok := s.Layout.regime(occupied)
			if !ok {
				continue
			}
			cells[CellKey{SegmentID: s.ID, Occupied: occupied}] = CellModel{
				Bins:         set,
				Coefficients: slices.Clone(s.Coefficients[offset : offset+set.Len()]),
				Counts:       slices.Clone(set.Counts),
			}
		}
	}
	return cells
}

// baselineUncertainty routes every baseline hour to its prediction segment
// and summarizes that segment's residuals. N and NPrime are the segment fit's
// own row count and effective sample size; the mean and MSE cover only the
// hours routed to it, which for three_month_weighted is the centre month.
// Hours routed to a skipped segment or that cannot be encoded are left out.
func (m *Model) baselineUncertainty(baseline []Observation) map[string]UncertaintyVars {
	type acc struct {
		month time.Month
		n     int
		usage float64
		sse   float64
	}
	groups := make(map[string]*acc)
	for _, o := range baseline {
		id := PredictionSegmentID(o.Time, m.SegmentType)
		h, err := m.predictHour(o.Time, o.Temperature)
		if err != nil {
			continue
		}
		a, ok := groups[id]
		if !ok {
			a = &acc{}
			if m.SegmentType == SegmentThreeMonthWeighted {
				a.month = o.Time.Month()
			}
			groups[id] = a
		}
		r := o.Usage - h.Predicted
		a.n++
		a.usage += o.Usage
		a.sse += r * r
	}

	out := make(map[string]UncertaintyVars, len(groups))
	for id, a := range groups {
		seg, ok := m.Segment(id)
		if !ok {
			continue
		}
		out[id] = UncertaintyVars{
			SegmentID:         id,
			Month:             a.month,
			MeanBaselineUsage: a.usage / float64(a.n),
			N:                 seg.Metrics.N,
			NPrime:            seg.Metrics.NPrime,
			MSE:               a.sse / float64(a.n),
		}
	}
	return out
}
