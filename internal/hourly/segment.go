package hourly

import (
	"fmt"
	"time"
)

// SegmentType selects how the baseline is partitioned for fitting.
type SegmentType string

const (
	// SegmentSingle fits one model over the whole baseline.
	SegmentSingle SegmentType = "single"
	// SegmentThreeMonthWeighted fits one model per calendar month from a
	// centred three-month window with tapered weights.
	SegmentThreeMonthWeighted SegmentType = "three_month_weighted"
)

// AllSegmentID names the only segment of a single-segment model.
const AllSegmentID = "all"

// Three-month taper: the centre month carries half the weight of each of its
// hours and each neighbour a quarter, so an hour's weights across the three
// segments that contain it sum to one.
const (
	centreMonthWeight    = 0.5
	neighbourMonthWeight = 0.25
)

// ParseSegmentType validates a segment type name. The empty string selects
// SegmentSingle.
func ParseSegmentType(s string) (SegmentType, error) {
	switch SegmentType(s) {
	case "", SegmentSingle:
		return SegmentSingle, nil
	case SegmentThreeMonthWeighted:
		return SegmentThreeMonthWeighted, nil
	default:
		return "", fmt.Errorf("%w: unknown segment type %q", ErrInvalidOptions, s)
	}
}

// SegmentHour is one baseline hour's membership in a segment.
type SegmentHour struct {
	Index  int // position in the baseline index
	Weight float64
}

// Segment is a named subset of the baseline index.
type Segment struct {
	ID    string
	Month time.Month // centre month; zero for AllSegmentID
	Hours []SegmentHour
}

// Segmentation maps segment identifiers to their hours. Segments are in
// calendar order and every index position belongs to at least one segment.
type Segmentation struct {
	Type     SegmentType
	Size     int
	Segments []Segment
}

// SegmentTimeSeries partitions a baseline index.
func SegmentTimeSeries(index []time.Time, segmentType SegmentType) (Segmentation, error) {
	switch segmentType {
	case SegmentSingle:
		hours := make([]SegmentHour, len(index))
		for i := range index {
			hours[i] = SegmentHour{Index: i, Weight: 1}
		}
		return Segmentation{
			Type:     segmentType,
			Size:     len(index),
			Segments: []Segment{{ID: AllSegmentID, Hours: hours}},
		}, nil
	case SegmentThreeMonthWeighted:
		return segmentThreeMonth(index), nil
	default:
		return Segmentation{}, fmt.Errorf("%w: unknown segment type %q", ErrInvalidOptions, segmentType)
	}
}

func segmentThreeMonth(index []time.Time) Segmentation {
	byMonth := make(map[time.Month][]SegmentHour, 12)
	for i, t := range index {
		m := t.Month()
		byMonth[m] = append(byMonth[m], SegmentHour{Index: i, Weight: centreMonthWeight})
		byMonth[prevMonth(m)] = append(byMonth[prevMonth(m)], SegmentHour{Index: i, Weight: neighbourMonthWeight})
		byMonth[nextMonth(m)] = append(byMonth[nextMonth(m)], SegmentHour{Index: i, Weight: neighbourMonthWeight})
	}

	seg := Segmentation{Type: SegmentThreeMonthWeighted, Size: len(index)}
	for m := time.January; m <= time.December; m++ {
		hours := byMonth[m]
		if len(hours) == 0 {
			continue
		}
		seg.Segments = append(seg.Segments, Segment{
			ID:    ThreeMonthSegmentID(m),
			Month: m,
			Hours: hours,
		})
	}
	return seg
}

// ThreeMonthSegmentID names the segment centred on m, e.g. "dec-jan-feb-weighted".
func ThreeMonthSegmentID(m time.Month) string {
	return fmt.Sprintf("%s-%s-%s-weighted", MonthAbbr(prevMonth(m)), MonthAbbr(m), MonthAbbr(nextMonth(m)))
}

// PredictionSegmentID returns the segment whose model predicts hour t.
func PredictionSegmentID(t time.Time, segmentType SegmentType) string {
	if segmentType == SegmentThreeMonthWeighted {
		return ThreeMonthSegmentID(t.Month())
	}
	return AllSegmentID
}

// Lookup returns the segment with the given identifier.
func (s Segmentation) Lookup(id string) (Segment, bool) {
	for _, seg := range s.Segments {
		if seg.ID == id {
			return seg, true
		}
	}
	return Segment{}, false
}

// WeightsAt returns the weight index position i carries in each segment.
func (s Segmentation) WeightsAt(i int) map[string]float64 {
	out := make(map[string]float64)
	for _, seg := range s.Segments {
		for _, h := range seg.Hours {
			if h.Index == i {
				out[seg.ID] += h.Weight
			}
		}
	}
	return out
}

// withMinHours returns a segmentation holding only the segments with at least
// minHours positive-weight hours, and the identifiers of the dropped ones.
func (s Segmentation) withMinHours(minHours int) (Segmentation, []string) {
	kept := Segmentation{Type: s.Type, Size: s.Size}
	var skipped []string
	for _, seg := range s.Segments {
		if positiveHours(seg) < minHours {
			skipped = append(skipped, seg.ID)
			continue
		}
		kept.Segments = append(kept.Segments, seg)
	}
	return kept, skipped
}

func positiveHours(seg Segment) int {
	n := 0
	for _, h := range seg.Hours {
		if h.Weight > 0 {
			n++
		}
	}
	return n
}
