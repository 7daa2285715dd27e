package hourly

import (
	"fmt"
	"time"
)

// PredictedHour is the model output for one reporting hour.
type PredictedHour struct {
	Time        time.Time
	Temperature float64
	SegmentID   string
	Occupied    bool
	Bin         int
	// Extrapolated is set when the temperature lies outside the range the
	// segment's bins were fitted on and was clamped to an outer bin.
	Extrapolated bool
	Predicted    float64
	Observed     float64
	HasObserved  bool
}

// Prediction is an hour-by-hour reporting prediction in time order.
type Prediction struct {
	Hours []PredictedHour
}

// Predict applies the model to a reporting temperature series. Each hour is
// routed to its prediction segment and labelled with the baseline occupancy
// lookup; occupancy is never re-estimated on reporting data.
func (m *Model) Predict(temperature Series) (Prediction, error) {
	p := Prediction{Hours: make([]PredictedHour, 0, len(temperature))}
	for _, pt := range temperature {
		h, err := m.predictHour(pt.Time, pt.Value)
		if err != nil {
			return Prediction{}, fmt.Errorf("predict %s: %w", pt.Time.Format(time.RFC3339), err)
		}
		p.Hours = append(p.Hours, h)
	}
	return p, nil
}

func (m *Model) predictHour(t time.Time, temperature float64) (PredictedHour, error) {
	id := PredictionSegmentID(t, m.SegmentType)
	seg, ok := m.Segment(id)
	if !ok {
		return PredictedHour{}, fmt.Errorf("%w: segment %s was not fitted", ErrInsufficientData, id)
	}

	how := HourOfWeek(t)
	occupied := m.Occupancy.Occupied(id, how)
	_, set, ok := seg.Layout.regime(occupied)
	if !ok {
		return PredictedHour{}, fmt.Errorf("%w: segment %s has no %s baseline hours", ErrInsufficientData, id, regimeName(occupied))
	}

	row := make([]float64, seg.Layout.Width())
	if err := seg.Layout.Encode(row, how, occupied, temperature); err != nil {
		return PredictedHour{}, fmt.Errorf("segment %s: %w", id, err)
	}
	var predicted float64
	for j, v := range row {
		predicted += v * seg.Coefficients[j]
	}

	return PredictedHour{
		Time:         t,
		Temperature:  temperature,
		SegmentID:    id,
		Occupied:     occupied,
		Bin:          set.Bin(temperature),
		Extrapolated: set.Clamped(temperature),
		Predicted:    predicted,
	}, nil
}

// WithObserved returns a copy of the prediction with the usage readings
// attached by instant. Hours without a reading keep HasObserved false.
func (p Prediction) WithObserved(usage Series) Prediction {
	byInstant := make(map[int64]float64, len(usage))
	for _, pt := range usage {
		byInstant[pt.Time.UnixNano()] = pt.Value
	}
	out := Prediction{Hours: make([]PredictedHour, len(p.Hours))}
	for i, h := range p.Hours {
		h.Observed, h.HasObserved = 0, false
		if v, ok := byInstant[h.Time.UnixNano()]; ok {
			h.Observed, h.HasObserved = v, true
		}
		out.Hours[i] = h
	}
	return out
}

// Predicted returns the predicted series.
func (p Prediction) Predicted() Series {
	out := make(Series, len(p.Hours))
	for i, h := range p.Hours {
		out[i] = Point{Time: h.Time, Value: h.Predicted}
	}
	return out
}

// Observed returns the observed series over the hours that have a reading.
func (p Prediction) Observed() Series {
	out := make(Series, 0, len(p.Hours))
	for _, h := range p.Hours {
		if h.HasObserved {
			out = append(out, Point{Time: h.Time, Value: h.Observed})
		}
	}
	return out
}

// pairs returns aligned predicted and observed values of the observed hours
// accepted by keep.
func (p Prediction) pairs(keep func(PredictedHour) bool) (predicted, observed []float64, hours []PredictedHour) {
	for _, h := range p.Hours {
		if !h.HasObserved || !keep(h) {
			continue
		}
		predicted = append(predicted, h.Predicted)
		observed = append(observed, h.Observed)
		hours = append(hours, h)
	}
	return predicted, observed, hours
}
