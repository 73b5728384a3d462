package ustar

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	minChangePointN = 10
	outlierSD       = 4.0
	endFraction     = 0.05
	minEndPoints    = 3

	// maxDesignCond rejects nearly collinear designs, e.g. a hinge placed on
	// the first point which makes the clamped column constant.
	maxDesignCond = 1e10
)

// modelSpec describes how a model family builds its design matrix and how
// its F statistic is tested.
type modelSpec struct {
	nFull int
	fDf1  float64 // numerator degrees of freedom for extrapolating beyond the tables

	// design fills row r of X for observation x with a break at xc.
	design func(X *mat.Dense, r int, x, xc float64)
}

var modelSpecs = [...]modelSpec{
	TwoParam: {
		nFull: 2,
		fDf1:  2,
		design: func(X *mat.Dense, r int, x, xc float64) {
			X.Set(r, 0, 1)
			X.Set(r, 1, math.Min(x, xc))
		},
	},
	ThreeParam: {
		nFull: 3,
		fDf1:  3,
		design: func(X *mat.Dense, r int, x, xc float64) {
			X.Set(r, 0, 1)
			X.Set(r, 1, x)
			X.Set(r, 2, math.Max(x-xc, 0))
		},
	},
}

// Detection is the outcome of one model family on one binned series. Cp is
// the accepted change point: NaN unless the break is significant and away
// from the ends of the series.
type Detection struct {
	Cp    float64
	Stats Stats
}

func failedDetection() Detection {
	return Detection{Cp: math.NaN(), Stats: EmptyStats()}
}

// olsFit is an ordinary least squares solution with 95% confidence
// half-widths and the coefficient covariance.
type olsFit struct {
	coef []float64
	ci   []float64
	cov  *mat.SymDense
	tq   float64
	sse  float64
}

// fitOLS solves y = X b. It reports false when X is rank deficient or, if
// withCI is set, when the covariance cannot be formed.
func fitOLS(X *mat.Dense, y *mat.VecDense, withCI bool) (olsFit, bool) {
	n, p := X.Dims()
	if n <= p {
		return olsFit{}, false
	}
	var qr mat.QR
	qr.Factorize(X)
	if c := qr.Cond(); math.IsInf(c, 0) || math.IsNaN(c) || c > maxDesignCond {
		return olsFit{}, false
	}
	var b mat.VecDense
	if err := qr.SolveVecTo(&b, false, y); err != nil {
		return olsFit{}, false
	}

	var yHat mat.VecDense
	yHat.MulVec(X, &b)
	sse := 0.0
	for i := 0; i < n; i++ {
		d := y.AtVec(i) - yHat.AtVec(i)
		sse += d * d
	}

	fit := olsFit{coef: make([]float64, p), sse: sse}
	for j := range fit.coef {
		fit.coef[j] = b.AtVec(j)
	}
	if !withCI {
		return fit, true
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return olsFit{}, false
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return olsFit{}, false
	}
	df := float64(n - p)
	inv.ScaleSym(sse/df, &inv)
	tq := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(0.975)
	fit.cov = &inv
	fit.tq = tq
	fit.ci = make([]float64, p)
	for j := range fit.ci {
		fit.ci[j] = tq * math.Sqrt(inv.At(j, j))
	}
	return fit, true
}

// FindChangePoint fits the two-parameter and three-parameter change-point
// models to the binned series (x, y) and returns both detections. A break
// is accepted when its significance is at most pSig. Insufficient or
// degenerate data yields NaN detections.
func FindChangePoint(x, y []float64, pSig float64) (two, three Detection) {
	two, three = failedDetection(), failedDetection()

	xs, ys := sortedPairs(x, y)
	if len(xs) < minChangePointN {
		return two, three
	}

	xs, ys, ok := trimRegressionOutliers(xs, ys)
	if !ok || len(xs) < minChangePointN {
		return two, three
	}
	n := len(xs)

	yv := mat.NewVecDense(n, ys)
	nullSSE := [2]float64{}
	{
		mean := stat.Mean(ys, nil)
		for _, v := range ys {
			nullSSE[TwoParam] += (v - mean) * (v - mean)
		}
		X := mat.NewDense(n, 2, nil)
		for i, v := range xs {
			X.Set(i, 0, 1)
			X.Set(i, 1, v)
		}
		line, ok := fitOLS(X, yv, false)
		if !ok {
			return two, three
		}
		nullSSE[ThreeParam] = line.sse
	}

	nEnd := int(math.Floor(endFraction * float64(n)))
	if nEnd < minEndPoints {
		nEnd = minEndPoints
	}

	out := [2]*Detection{&two, &three}
	for _, m := range Models {
		spec := modelSpecs[m]
		X := mat.NewDense(n, spec.nFull, nil)

		fmax, iMax := math.NaN(), -1
		for i := 0; i < n-1; i++ {
			for r, v := range xs {
				spec.design(X, r, v, xs[i])
			}
			full, ok := fitOLS(X, yv, false)
			if !ok {
				continue
			}
			f := (nullSSE[m] - full.sse) / (full.sse / float64(n-spec.nFull))
			if math.IsNaN(f) {
				continue
			}
			if iMax < 0 || f > fmax {
				fmax, iMax = f, i
			}
		}
		if iMax < 0 {
			continue
		}

		xc := xs[iMax]
		for r, v := range xs {
			spec.design(X, r, v, xc)
		}
		fit, ok := fitOLS(X, yv, true)
		if !ok {
			continue
		}

		s := EmptyStats()
		s.N = n
		s.Fmax = fmax
		s.P = FmaxToP(m, fmax, n)
		s.Cp = xc
		s.B0, s.CIB0 = fit.coef[0], fit.ci[0]
		s.B1, s.CIB1 = fit.coef[1], fit.ci[1]
		if m == ThreeParam {
			s.B2, s.CIB2 = fit.coef[2], fit.ci[2]
			s.C2 = s.B1 + s.B2
			varC2 := fit.cov.At(1, 1) + fit.cov.At(2, 2) + 2*fit.cov.At(1, 2)
			s.CIC2 = fit.tq * math.Sqrt(math.Max(varC2, 0))
		}
		if iMax < nEnd || iMax > n-nEnd-1 {
			s.Cp = math.NaN()
		}

		d := out[m]
		d.Stats = s
		if s.P <= pSig {
			d.Cp = s.Cp
		}
	}
	return two, three
}

// trimRegressionOutliers drops points whose residual from a straight-line
// fit lies more than outlierSD standard deviations from the mean residual.
func trimRegressionOutliers(xs, ys []float64) ([]float64, []float64, bool) {
	n := len(xs)
	X := mat.NewDense(n, 2, nil)
	for i, v := range xs {
		X.Set(i, 0, 1)
		X.Set(i, 1, v)
	}
	line, ok := fitOLS(X, mat.NewVecDense(n, ys), false)
	if !ok {
		return nil, nil, false
	}
	resid := make([]float64, n)
	for i := range xs {
		resid[i] = ys[i] - (line.coef[0] + line.coef[1]*xs[i])
	}
	mean, sd := stat.MeanStdDev(resid, nil)
	keepX := make([]float64, 0, n)
	keepY := make([]float64, 0, n)
	for i := range xs {
		if math.Abs(resid[i]-mean) > outlierSD*sd {
			continue
		}
		keepX = append(keepX, xs[i])
		keepY = append(keepY, ys[i])
	}
	return keepX, keepY, true
}
