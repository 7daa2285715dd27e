package hourly

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// FeatureSet selects the regression features of a segment model.
type FeatureSet string

const (
	// FeatureBins fits one level per (occupancy, temperature bin) cell.
	FeatureBins FeatureSet = "bins"
	// FeatureCalTRACK fits an intercept per hour-of-week plus piecewise
	// linear temperature terms per occupancy regime.
	FeatureCalTRACK FeatureSet = "caltrack"
)

// DefaultMinCellObservations is the fewest baseline hours a used cell needs.
const DefaultMinCellObservations = 10

// ParseFeatureSet validates a feature set name. The empty string selects FeatureBins.
func ParseFeatureSet(s string) (FeatureSet, error) {
	switch FeatureSet(s) {
	case "", FeatureBins:
		return FeatureBins, nil
	case FeatureCalTRACK:
		return FeatureCalTRACK, nil
	default:
		return "", fmt.Errorf("%w: unknown feature set %q", ErrInvalidOptions, s)
	}
}

// Layout is the column layout of one segment's design matrix. It depends only
// on the segment's bin sets, its active regimes and the feature set, so a
// reporting row encodes against exactly the columns the baseline was fit on.
type Layout struct {
	features   FeatureSet
	bins       TemperatureBins
	hourOfWeek []int // caltrack: column of each hour-of-week, -1 when unseen
	occOffset  int
	unoccOff   int
	width      int
}

func newLayout(features FeatureSet, bins TemperatureBins, seen [HoursPerWeek]bool) Layout {
	l := Layout{features: features, bins: bins, occOffset: -1, unoccOff: -1}
	if features == FeatureCalTRACK {
		l.hourOfWeek = make([]int, HoursPerWeek)
		for how := range l.hourOfWeek {
			l.hourOfWeek[how] = -1
			if seen[how] {
				l.hourOfWeek[how] = l.width
				l.width++
			}
		}
	}
	if bins.Occupied != nil {
		l.occOffset = l.width
		l.width += bins.Occupied.Len()
	}
	if bins.Unoccupied != nil {
		l.unoccOff = l.width
		l.width += bins.Unoccupied.Len()
	}
	return l
}

// Features returns the feature set the layout encodes.
func (l Layout) Features() FeatureSet { return l.features }

// Width returns the number of columns.
func (l Layout) Width() int { return l.width }

// Columns names every column in order.
func (l Layout) Columns() []string {
	cols := make([]string, 0, l.width)
	for how, col := range l.hourOfWeek {
		if col >= 0 {
			cols = append(cols, fmt.Sprintf("how_%03d", how))
		}
	}
	prefix := "bin"
	if l.features == FeatureCalTRACK {
		prefix = "temp"
	}
	if set := l.bins.Occupied; set != nil {
		for i := 0; i < set.Len(); i++ {
			cols = append(cols, fmt.Sprintf("occupied_%s_%d", prefix, i))
		}
	}
	if set := l.bins.Unoccupied; set != nil {
		for i := 0; i < set.Len(); i++ {
			cols = append(cols, fmt.Sprintf("unoccupied_%s_%d", prefix, i))
		}
	}
	return cols
}

// regime returns the column offset and bin set of an occupancy regime.
func (l Layout) regime(occupied bool) (int, BinSet, bool) {
	set, ok := l.bins.For(occupied)
	if !ok {
		return 0, BinSet{}, false
	}
	if occupied {
		return l.occOffset, set, true
	}
	return l.unoccOff, set, true
}

// Encode fills dst, which must have Width elements, with the row of one hour.
// It fails with ErrInsufficientData when the hour needs a regime or
// hour-of-week the segment has no baseline data for.
func (l Layout) Encode(dst []float64, hourOfWeek int, occupied bool, temperature float64) error {
	clear(dst)
	offset, set, ok := l.regime(occupied)
	if !ok {
		return fmt.Errorf("%w: no %s baseline hours", ErrInsufficientData, regimeName(occupied))
	}

	switch l.features {
	case FeatureCalTRACK:
		col := l.hourOfWeek[hourOfWeek]
		if col < 0 {
			return fmt.Errorf("%w: hour-of-week %d has no baseline hours", ErrInsufficientData, hourOfWeek)
		}
		dst[col] = 1
		segmentedTemperature(dst[offset:offset+set.Len()], set.Edges, temperature)
	default:
		dst[offset+set.Bin(temperature)] = 1
	}
	return nil
}

// segmentedTemperature splits t across the bins so that each bin carries the
// part of t inside it and the features sum back to t.
func segmentedTemperature(dst, edges []float64, t float64) {
	if len(edges) == 0 {
		dst[0] = t
		return
	}
	dst[0] = min(t, edges[0])
	for i := 1; i < len(edges); i++ {
		dst[i] = min(max(t-edges[i-1], 0), edges[i]-edges[i-1])
	}
	dst[len(edges)] = max(t-edges[len(edges)-1], 0)
}

func regimeName(occupied bool) string {
	if occupied {
		return "occupied"
	}
	return "unoccupied"
}

// DesignMatrix is one segment's weighted regression problem. Rows are the
// segment's positive-weight baseline hours in time order.
type DesignMatrix struct {
	SegmentID string
	Layout    Layout
	Times     []time.Time
	X         *mat.Dense
	Y         []float64
	Weights   []float64
}

// BuildDesignMatrices builds one matrix per segment, in segment order. A cell
// (bins) or an occupancy regime (caltrack) with fewer than minCell hours is
// insufficient data.
func BuildDesignMatrices(obs []Observation, seg Segmentation, occ OccupancyLookup, bins BinTable, features FeatureSet, minCell int) ([]DesignMatrix, error) {
	out := make([]DesignMatrix, 0, len(seg.Segments))
	for _, s := range seg.Segments {
		dm, err := buildDesignMatrix(obs, s, occ, bins[s.ID], features, minCell)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", s.ID, err)
		}
		out = append(out, dm)
	}
	return out, nil
}

func buildDesignMatrix(obs []Observation, s Segment, occ OccupancyLookup, bins TemperatureBins, features FeatureSet, minCell int) (DesignMatrix, error) {
	var seen [HoursPerWeek]bool
	rows := make([]SegmentHour, 0, len(s.Hours))
	for _, h := range s.Hours {
		if h.Weight > 0 {
			rows = append(rows, h)
			seen[HourOfWeek(obs[h.Index].Time)] = true
		}
	}
	layout := newLayout(features, bins, seen)
	if len(rows) == 0 || layout.Width() == 0 {
		return DesignMatrix{}, fmt.Errorf("%w: no weighted hours", ErrInsufficientData)
	}

	dm := DesignMatrix{
		SegmentID: s.ID,
		Layout:    layout,
		Times:     make([]time.Time, len(rows)),
		X:         mat.NewDense(len(rows), layout.Width(), nil),
		Y:         make([]float64, len(rows)),
		Weights:   make([]float64, len(rows)),
	}
	regimeCounts := map[bool]int{}
	for i, h := range rows {
		o := obs[h.Index]
		occupied := occ.Occupied(s.ID, HourOfWeek(o.Time))
		if err := layout.Encode(dm.X.RawRowView(i), HourOfWeek(o.Time), occupied, o.Temperature); err != nil {
			return DesignMatrix{}, err
		}
		regimeCounts[occupied]++
		dm.Times[i] = o.Time
		dm.Y[i] = o.Usage
		dm.Weights[i] = h.Weight
	}

	switch features {
	case FeatureCalTRACK:
		for _, occupied := range []bool{true, false} {
			if n := regimeCounts[occupied]; n > 0 && n < minCell {
				return DesignMatrix{}, fmt.Errorf("%w: %s regime has %d hours, need %d",
					ErrInsufficientData, regimeName(occupied), n, minCell)
			}
		}
	default:
		for _, occupied := range []bool{true, false} {
			set, ok := bins.For(occupied)
			if !ok {
				continue
			}
			for b, n := range set.Counts {
				if n < minCell {
					return DesignMatrix{}, fmt.Errorf("%w: %s bin %s has %d hours, need %d",
						ErrInsufficientData, regimeName(occupied), set.Label(b), n, minCell)
				}
			}
		}
	}
	return dm, nil
}
