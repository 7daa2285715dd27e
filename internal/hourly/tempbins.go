package hourly

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// BinStrategy selects how the starting bin edges are chosen.
type BinStrategy string

const (
	BinFixed    BinStrategy = "fixed"
	BinQuantile BinStrategy = "quantile"
)

// Binning defaults, in °F.
var DefaultBinEdges = []float64{30, 45, 55, 65, 75, 90}

const (
	DefaultBinMinCount  = 20
	DefaultQuantileBins = 6
)

// BinOptions configures FitTemperatureBins.
type BinOptions struct {
	Strategy     BinStrategy `yaml:"strategy"`
	DefaultEdges []float64   `yaml:"default_edges"`
	QuantileBins int         `yaml:"quantile_bins"`
	MinCount     int         `yaml:"min_count"`
}

// DefaultBinOptions returns the fixed-edge strategy with the default edges.
func DefaultBinOptions() BinOptions {
	return BinOptions{
		Strategy:     BinFixed,
		DefaultEdges: slices.Clone(DefaultBinEdges),
		QuantileBins: DefaultQuantileBins,
		MinCount:     DefaultBinMinCount,
	}
}

func (o BinOptions) validate() error {
	switch o.Strategy {
	case BinFixed:
		for i := 1; i < len(o.DefaultEdges); i++ {
			if !(o.DefaultEdges[i] > o.DefaultEdges[i-1]) {
				return fmt.Errorf("%w: bin edges must be strictly increasing", ErrInvalidOptions)
			}
		}
	case BinQuantile:
		if o.QuantileBins < 1 {
			return fmt.Errorf("%w: quantile bins must be at least 1", ErrInvalidOptions)
		}
	default:
		return fmt.Errorf("%w: unknown bin strategy %q", ErrInvalidOptions, o.Strategy)
	}
	if o.MinCount < 1 {
		return fmt.Errorf("%w: bin min count must be at least 1", ErrInvalidOptions)
	}
	return nil
}

// BinSet is a fitted temperature discretization. Edges are the interior
// endpoints in increasing order and bins are right-closed:
// (-inf, e0], (e0, e1], ..., (eN, +inf). Min and Max bound the temperatures
// the set was fitted on.
type BinSet struct {
	Edges  []float64 `json:"edges"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Counts []int     `json:"counts"`
}

// Len returns the number of bins.
func (b BinSet) Len() int { return len(b.Edges) + 1 }

// Bin returns the bin holding temperature t. Values beyond the outer edges
// fall into the first or last bin.
func (b BinSet) Bin(t float64) int {
	return sort.SearchFloat64s(b.Edges, t)
}

// Clamped reports whether t lies outside the fitted temperature range.
func (b BinSet) Clamped(t float64) bool {
	return t < b.Min || t > b.Max
}

// Label names bin i by its bounds, e.g. "(45,55]".
func (b BinSet) Label(i int) string {
	lo, hi := "-inf", "+inf"
	if i > 0 {
		lo = formatEdge(b.Edges[i-1])
	}
	if i < len(b.Edges) {
		hi = formatEdge(b.Edges[i])
	}
	return "(" + lo + "," + hi + "]"
}

func formatEdge(e float64) string {
	return fmt.Sprintf("%g", math.Round(e*100)/100)
}

// TemperatureBins holds the bin sets of one segment's two regimes. A nil set
// means the segment has no baseline hours in that regime.
type TemperatureBins struct {
	Occupied   *BinSet `json:"occupied,omitempty"`
	Unoccupied *BinSet `json:"unoccupied,omitempty"`
}

// For returns the bin set of a regime.
func (t TemperatureBins) For(occupied bool) (BinSet, bool) {
	set := t.Unoccupied
	if occupied {
		set = t.Occupied
	}
	if set == nil {
		return BinSet{}, false
	}
	return *set, true
}

// BinTable maps segment identifiers to their regime bin sets.
type BinTable map[string]TemperatureBins

// FitTemperatureBins fits one bin set per (segment, occupancy) cell from the
// positive-weight baseline hours of that cell.
func FitTemperatureBins(obs []Observation, seg Segmentation, occ OccupancyLookup, opts BinOptions) (BinTable, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	table := make(BinTable, len(seg.Segments))
	for _, s := range seg.Segments {
		var occupied, unoccupied []float64
		for _, h := range s.Hours {
			if h.Weight <= 0 {
				continue
			}
			o := obs[h.Index]
			if occ.Occupied(s.ID, HourOfWeek(o.Time)) {
				occupied = append(occupied, o.Temperature)
			} else {
				unoccupied = append(unoccupied, o.Temperature)
			}
		}

		var bins TemperatureBins
		if len(occupied) > 0 {
			set := fitBinSet(occupied, opts)
			bins.Occupied = &set
		}
		if len(unoccupied) > 0 {
			set := fitBinSet(unoccupied, opts)
			bins.Unoccupied = &set
		}
		table[s.ID] = bins
	}
	return table, nil
}

func fitBinSet(temps []float64, opts BinOptions) BinSet {
	sorted := slices.Clone(temps)
	slices.Sort(sorted)

	var edges []float64
	switch opts.Strategy {
	case BinQuantile:
		edges = quantileEdges(sorted, opts.QuantileBins)
	default:
		edges = slices.Clone(opts.DefaultEdges)
	}

	for {
		counts := countBins(edges, sorted)
		sparse := slices.IndexFunc(counts, func(c int) bool { return c < opts.MinCount })
		if sparse < 0 || len(edges) == 0 {
			return BinSet{
				Edges:  edges,
				Min:    sorted[0],
				Max:    sorted[len(sorted)-1],
				Counts: counts,
			}
		}
		// The first and middle bins give up their right edge, the last bin its left.
		drop := sparse
		if sparse == len(counts)-1 {
			drop = len(edges) - 1
		}
		edges = slices.Delete(edges, drop, drop+1)
	}
}

func quantileEdges(sorted []float64, bins int) []float64 {
	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		q := stat.Quantile(float64(i)/float64(bins), stat.Empirical, sorted, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	return edges
}

func countBins(edges, sorted []float64) []int {
	counts := make([]int, len(edges)+1)
	for _, t := range sorted {
		counts[sort.SearchFloat64s(edges, t)]++
	}
	return counts
}
