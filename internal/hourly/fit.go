package hourly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitMetrics describes how well a segment model explains its baseline rows.
// Ratios that are undefined for the sample (zero mean, too few rows) are zero.
type FitMetrics struct {
	N                int     `json:"n"`
	NumParameters    int     `json:"num_parameters"`
	ObservedMean     float64 `json:"observed_mean"`
	PredictedMean    float64 `json:"predicted_mean"`
	RSquared         float64 `json:"r_squared"`
	RSquaredAdj      float64 `json:"r_squared_adj"`
	RMSE             float64 `json:"rmse"`
	RMSEAdj          float64 `json:"rmse_adj"`
	CVRMSE           float64 `json:"cvrmse"`
	CVRMSEAdj        float64 `json:"cvrmse_adj"`
	NMBE             float64 `json:"nmbe"`
	NumMeterZeros    int     `json:"num_meter_zeros"`
	AutocorrResid    float64 `json:"autocorr_resid"`
	NPrime           float64 `json:"n_prime"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	ResidualVariance float64 `json:"residual_variance"`
}

// SegmentFit is the solved regression of one design matrix.
type SegmentFit struct {
	SegmentID    string
	Coefficients []float64
	Fitted       []float64
	Residuals    []float64
	Metrics      FitMetrics
}

// FitSegment solves the weighted least-squares problem of dm. With the bins
// features every row has a single indicator, so each coefficient is the
// weighted mean usage of its cell.
func FitSegment(dm DesignMatrix) (SegmentFit, error) {
	beta, err := weightedLeastSquares(dm.X, dm.Y, dm.Weights)
	if err != nil {
		return SegmentFit{}, err
	}

	rows, cols := dm.X.Dims()
	fitted := make([]float64, rows)
	residuals := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var p float64
		for j, v := range dm.X.RawRowView(i) {
			p += v * beta[j]
		}
		fitted[i] = p
		residuals[i] = dm.Y[i] - p
	}

	return SegmentFit{
		SegmentID:    dm.SegmentID,
		Coefficients: beta,
		Fitted:       fitted,
		Residuals:    residuals,
		Metrics:      computeFitMetrics(dm.Y, fitted, cols),
	}, nil
}

func computeFitMetrics(observed, predicted []float64, numParameters int) FitMetrics {
	n := len(observed)
	m := FitMetrics{N: n, NumParameters: numParameters, DegreesOfFreedom: n - numParameters}
	if n == 0 {
		return m
	}

	residuals := make([]float64, n)
	var sse, sumResid float64
	for i := range observed {
		if observed[i] == 0 {
			m.NumMeterZeros++
		}
		residuals[i] = observed[i] - predicted[i]
		sse += residuals[i] * residuals[i]
		sumResid += predicted[i] - observed[i]
	}

	m.ObservedMean = stat.Mean(observed, nil)
	m.PredictedMean = stat.Mean(predicted, nil)
	m.RMSE = math.Sqrt(sse / float64(n))
	m.ResidualVariance = sse / float64(n)
	if dof := n - numParameters; dof > 0 {
		m.RMSEAdj = math.Sqrt(sse / float64(dof))
	}
	if r := finiteOrZero(stat.Correlation(observed, predicted, nil)); r != 0 {
		m.RSquared = r * r
		if dof := n - numParameters - 1; dof > 0 {
			m.RSquaredAdj = 1 - (1-m.RSquared)*float64(n-1)/float64(dof)
		}
	}
	if m.ObservedMean != 0 {
		m.CVRMSE = m.RMSE / m.ObservedMean
		m.CVRMSEAdj = m.RMSEAdj / m.ObservedMean
		m.NMBE = sumResid / float64(n) / m.ObservedMean
	}

	m.AutocorrResid = lagOneAutocorrelation(residuals)
	m.NPrime = effectiveSampleSize(n, m.AutocorrResid)
	return m
}

// lagOneAutocorrelation is the correlation of a series with itself shifted by
// one step, zero when undefined.
func lagOneAutocorrelation(x []float64) float64 {
	if len(x) < 3 {
		return 0
	}
	return finiteOrZero(stat.Correlation(x[:len(x)-1], x[1:], nil))
}

// effectiveSampleSize discounts n for lag-1 autocorrelation rho.
func effectiveSampleSize(n int, rho float64) float64 {
	if rho <= -1 {
		return float64(n)
	}
	return float64(n) * (1 - rho) / (1 + rho)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
