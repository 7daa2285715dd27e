package hourly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// weightedLeastSquares solves min Σ wᵢ(yᵢ - xᵢ·β)². The normal equations are
// solved by Cholesky; rank-deficient systems fall back to the SVD
// pseudo-inverse, which returns the minimum-norm solution.
func weightedLeastSquares(x *mat.Dense, y, w []float64) ([]float64, error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty design matrix", ErrInsufficientData)
	}

	xw := mat.NewDense(r, c, nil)
	yw := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < c; j++ {
			xw.Set(i, j, x.At(i, j)*sw)
		}
		yw.SetVec(i, y[i]*sw)
	}

	var xtx mat.Dense
	xtx.Mul(xw.T(), xw)
	sym := mat.NewSymDense(c, nil)
	for i := 0; i < c; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, xtx.At(i, j))
		}
	}

	var xty mat.VecDense
	xty.MulVec(xw.T(), yw)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); ok {
		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, &xty); err == nil {
			return vecToSlice(&beta), nil
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(xw, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: design matrix factorization failed", ErrInsufficientData)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)
	if len(s) == 0 || s[0] == 0 {
		return nil, fmt.Errorf("%w: design matrix has no signal", ErrInsufficientData)
	}

	var uty mat.VecDense
	uty.MulVec(u.T(), yw)
	tol := s[0] * float64(max(r, c)) * 1e-15
	for i, sv := range s {
		if sv > tol {
			uty.SetVec(i, uty.AtVec(i)/sv)
		} else {
			uty.SetVec(i, 0)
		}
	}

	var beta mat.VecDense
	beta.MulVec(&v, &uty)
	return vecToSlice(&beta), nil
}

func vecToSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
