package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultCollinearityTol is the default relative singular-value cutoff below
// which the design matrix is treated as rank deficient.
const DefaultCollinearityTol = 1e-8

// solveOLS computes the ordinary-least-squares fit of d via singular value
// decomposition and returns coefficients with HC1
// heteroskedasticity-robust standard errors. A design matrix whose smallest
// singular value falls below tol relative to the largest fails with a
// CollinearityError naming the implicated columns.
func solveOLS(d *design, spec Specification, tol float64) (FitResult, error) {
	n, k := d.x.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(d.x, mat.SVDThin); !ok {
		return FitResult{}, fmt.Errorf("specification %q: SVD of %dx%d design matrix failed", spec.Name, n, k)
	}
	sv := svd.Values(nil)

	if implicated := collinearColumns(&svd, sv, d.names, tol); len(implicated) > 0 {
		return FitResult{}, &CollinearityError{Spec: spec.Name, Columns: implicated, Tol: tol}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// beta = V S^-1 U' y
	var uty mat.VecDense
	uty.MulVec(u.T(), d.y)
	scaled := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		scaled.SetVec(i, uty.AtVec(i)/sv[i])
	}
	beta := mat.NewVecDense(k, nil)
	beta.MulVec(&v, scaled)

	// Residuals and fit quality
	var fitted mat.VecDense
	fitted.MulVec(d.x, beta)
	resid := make([]float64, n)
	var ssr, sst, ybar float64
	for i := 0; i < n; i++ {
		ybar += d.y.AtVec(i)
	}
	ybar /= float64(n)
	for i := 0; i < n; i++ {
		resid[i] = d.y.AtVec(i) - fitted.AtVec(i)
		ssr += resid[i] * resid[i]
		dev := d.y.AtVec(i) - ybar
		sst += dev * dev
	}
	rsq := 0.0
	if sst > 0 {
		rsq = 1 - ssr/sst
	}

	cov := robustCovariance(d.x, &v, sv, resid)
	df := n - k

	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	terms := make([]Term, k)
	for j := 0; j < k; j++ {
		se := math.Sqrt(cov.At(j, j))
		t := 0.0
		if se > 0 {
			t = beta.AtVec(j) / se
		}
		terms[j] = Term{
			Name:        d.names[j],
			Coefficient: beta.AtVec(j),
			StdErr:      se,
			TValue:      t,
			PValue:      2 * tdist.CDF(-math.Abs(t)),
		}
	}

	treated := terms[1] // column order is fixed: intercept, treated, controls
	return FitResult{
		Spec:        spec,
		N:           n,
		DF:          df,
		Coefficient: treated.Coefficient,
		StdErr:      treated.StdErr,
		TValue:      treated.TValue,
		PValue:      treated.PValue,
		RSquared:    rsq,
		Terms:       terms,
	}, nil
}

// collinearColumns inspects the SVD for singular values below tol relative
// to the largest and maps each null direction back to the design columns
// loading on it.
func collinearColumns(svd *mat.SVD, sv []float64, names []string, tol float64) []string {
	smax := sv[0]
	if smax == 0 {
		return names // all-zero design
	}

	var nullIdx []int
	for i, s := range sv {
		if s <= tol*smax {
			nullIdx = append(nullIdx, i)
		}
	}
	if len(nullIdx) == 0 {
		return nil
	}

	var v mat.Dense
	svd.VTo(&v)
	seen := make(map[int]struct{})
	var implicated []string
	for j := range names {
		for _, i := range nullIdx {
			if math.Abs(v.At(j, i)) > 1e-8 {
				if _, dup := seen[j]; !dup {
					seen[j] = struct{}{}
					implicated = append(implicated, names[j])
				}
				break
			}
		}
	}
	return implicated
}

// robustCovariance computes the HC1 sandwich covariance
// (X'X)^-1 X' diag(e^2) X (X'X)^-1 * n/(n-k), with (X'X)^-1 reconstructed
// from the SVD as V S^-2 V'.
func robustCovariance(x *mat.Dense, v *mat.Dense, sv []float64, resid []float64) *mat.Dense {
	n, k := x.Dims()

	// bread = (X'X)^-1 = (V S^-1)(V S^-1)'
	vs := mat.NewDense(k, k, nil)
	for j := 0; j < k; j++ {
		for i := 0; i < k; i++ {
			vs.Set(j, i, v.At(j, i)/sv[i])
		}
	}
	var bread mat.Dense
	bread.Mul(vs, vs.T())

	// meat = X' diag(e^2) X via row scaling
	xe := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xe.Set(i, j, resid[i]*x.At(i, j))
		}
	}
	var meat mat.Dense
	meat.Mul(xe.T(), xe)

	var tmp, cov mat.Dense
	tmp.Mul(&bread, &meat)
	cov.Mul(&tmp, &bread)
	cov.Scale(float64(n)/float64(n-k), &cov)
	return &cov
}
