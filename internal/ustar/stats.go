package ustar

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// percentiles returns the p-th percentiles (0..100) of the finite values of
// x. Sorted values sit at plotting positions 100*(i-0.5)/n and are linearly
// interpolated between neighbours; requests outside the first and last
// positions return the minimum and maximum.
func percentiles(x []float64, ps []float64) []float64 {
	sorted := finite(x)
	sort.Float64s(sorted)
	out := make([]float64, len(ps))
	n := len(sorted)
	for k, p := range ps {
		out[k] = percentileSorted(sorted, n, p)
	}
	return out
}

func percentileSorted(sorted []float64, n int, p float64) float64 {
	if n == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	pos := p/100*float64(n) + 0.5 // 1-based
	switch {
	case pos <= 1:
		return sorted[0]
	case pos >= float64(n):
		return sorted[n-1]
	}
	lo := math.Floor(pos)
	frac := pos - lo
	i := int(lo) - 1
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// linspace returns n evenly spaced values from a to b inclusive.
func linspace(a, b float64, n int) []float64 {
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}

// finite returns a copy of x without NaN or infinite values.
func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func median(x []float64) float64 {
	return percentiles(x, []float64{50})[0]
}

// meanFinite is the mean over the finite values of x, NaN when none remain.
func meanFinite(x []float64) float64 {
	f := finite(x)
	if len(f) == 0 {
		return math.NaN()
	}
	return stat.Mean(f, nil)
}

// correlation returns Pearson's r between the finite pairs of x and y and
// its two-sided p-value from Student's t with n-2 degrees of freedom.
func correlation(x, y []float64) (r, p float64) {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	n := len(xs)
	if n < 3 {
		return math.NaN(), math.NaN()
	}
	r = stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return r, math.NaN()
	}
	if math.Abs(r) >= 1 {
		return r, 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * tDist.Survival(math.Abs(t))
	return r, p
}
