package hourly

import (
	"fmt"
	"math"
	"time"
)

// HourRange is the half-open hour-of-day range [Start, End).
type HourRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// WholeDay covers every hour of the day.
var WholeDay = HourRange{Start: 0, End: 24}

// Validate checks 0 <= Start < End <= 24.
func (r HourRange) Validate() error {
	if r.Start < 0 || r.End > 24 || r.Start >= r.End {
		return fmt.Errorf("%w: hour range [%d, %d) must satisfy 0 <= start < end <= 24", ErrInvalidOptions, r.Start, r.End)
	}
	return nil
}

// Contains reports whether t's hour of day falls inside the range.
func (r HourRange) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= r.Start && h < r.End
}

// Savings is the sum of predicted minus observed. Positive values mean usage
// came in below the baseline.
func Savings(predicted, observed []float64) (float64, error) {
	if err := sameLength(predicted, observed); err != nil {
		return 0, err
	}
	var s float64
	for i := range predicted {
		s += predicted[i] - observed[i]
	}
	return s, nil
}

// MAPE is the mean absolute percentage error over the hours with a non-zero
// observation. It is zero when no hour qualifies.
func MAPE(predicted, observed []float64) (float64, error) {
	v, _, err := mape(predicted, observed)
	return v, err
}

func mape(predicted, observed []float64) (float64, int, error) {
	if err := sameLength(predicted, observed); err != nil {
		return 0, 0, err
	}
	var sum float64
	n := 0
	for i := range predicted {
		if observed[i] == 0 {
			continue
		}
		sum += math.Abs((predicted[i] - observed[i]) / observed[i])
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n) * 100, n, nil
}

// RMSE is the root mean squared error, zero for empty input.
func RMSE(predicted, observed []float64) (float64, error) {
	if err := sameLength(predicted, observed); err != nil {
		return 0, err
	}
	if len(predicted) == 0 {
		return 0, nil
	}
	var sse float64
	for i := range predicted {
		d := predicted[i] - observed[i]
		sse += d * d
	}
	return math.Sqrt(sse / float64(len(predicted))), nil
}

func sameLength(predicted, observed []float64) error {
	if len(predicted) != len(observed) {
		return fmt.Errorf("%w: %d predicted values against %d observed", ErrInvalidOptions, len(predicted), len(observed))
	}
	return nil
}

// Evaluation summarizes a prediction against observed usage. Savings covers
// the hour range; MAPE and RMSE cover every observed hour.
type Evaluation struct {
	Savings      float64 `json:"savings"`
	MAPE         float64 `json:"mape"`
	RMSE         float64 `json:"rmse"`
	Hours        int     `json:"hours"`
	SavingsHours int     `json:"savings_hours"`
	MAPEHours    int     `json:"mape_hours"`
	// SavingsUncertainty is nil when the baseline residuals cannot support
	// an interval.
	SavingsUncertainty *float64 `json:"savings_uncertainty,omitempty"`
}

// Evaluate computes the savings, error metrics and savings uncertainty of a
// prediction with attached observations.
func Evaluate(p Prediction, hours HourRange, m *Model, confidence float64) (Evaluation, error) {
	if err := hours.Validate(); err != nil {
		return Evaluation{}, err
	}

	allPred, allObs, all := p.pairs(func(PredictedHour) bool { return true })
	rangePred, rangeObs, inRange := p.pairs(func(h PredictedHour) bool { return hours.Contains(h.Time) })

	var ev Evaluation
	var err error
	ev.Hours = len(all)
	ev.SavingsHours = len(inRange)
	if ev.Savings, err = Savings(rangePred, rangeObs); err != nil {
		return Evaluation{}, err
	}
	if ev.MAPE, ev.MAPEHours, err = mape(allPred, allObs); err != nil {
		return Evaluation{}, err
	}
	if ev.RMSE, err = RMSE(allPred, allObs); err != nil {
		return Evaluation{}, err
	}

	if m != nil && len(inRange) > 0 {
		if u, err := m.savingsUncertainty(inRange, confidence); err == nil {
			ev.SavingsUncertainty = &u
		}
	}
	return ev, nil
}
