package hourly

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the two-sided confidence level of savings intervals.
const DefaultConfidence = 0.90

// ashraeFactor is the empirical coefficient of the ASHRAE Guideline 14
// savings uncertainty formula.
const ashraeFactor = 1.26

// SavingsUncertainty is the half-width of the ASHRAE Guideline 14 confidence
// interval on savings summed over reportingHours hours predicted by a segment
// with the given residual statistics:
//
//	1.26 * t * sqrt(MSE * (n/n') * (1 + 2/n') * m)
//
// where t is the two-sided Student-t quantile with n' - p degrees of freedom.
func SavingsUncertainty(vars UncertaintyVars, numParameters, reportingHours int, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("%w: confidence %v outside (0, 1)", ErrInvalidOptions, confidence)
	}
	dof := vars.NPrime - float64(numParameters)
	if vars.N == 0 || vars.NPrime <= 0 || dof <= 0 {
		return 0, fmt.Errorf("%w: segment %s has %.1f effective hours for %d parameters",
			ErrInsufficientData, vars.SegmentID, vars.NPrime, numParameters)
	}
	if reportingHours <= 0 {
		return 0, nil
	}

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}.Quantile(1 - (1-confidence)/2)
	n := float64(vars.N)
	variance := vars.MSE * (n / vars.NPrime) * (1 + 2/vars.NPrime) * float64(reportingHours)
	return ashraeFactor * t * math.Sqrt(variance), nil
}

// savingsUncertainty combines the per-segment intervals of the given hours in
// quadrature.
func (m *Model) savingsUncertainty(hours []PredictedHour, confidence float64) (float64, error) {
	counts := make(map[string]int)
	for _, h := range hours {
		counts[h.SegmentID]++
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var total float64
	for _, id := range ids {
		vars, ok := m.Uncertainty[id]
		if !ok {
			return 0, fmt.Errorf("%w: no residual statistics for segment %s", ErrInsufficientData, id)
		}
		seg, _ := m.Segment(id)
		u, err := SavingsUncertainty(vars, seg.Layout.Width(), counts[id], confidence)
		if err != nil {
			return 0, err
		}
		total += u * u
	}
	return math.Sqrt(total), nil
}
