package ustar

import (
	"math"
	"math/rand/v2"
)

// syntheticSeries builds a half-hourly site-year whose nighttime NEE rises
// linearly with u* up to threshold and is flat above it.
func syntheticSeries(seed uint64, threshold float64) Series {
	const perDay = 48
	nt := 365 * perDay
	rng := rand.New(rand.NewPCG(seed, 7))
	s := Series{
		T:     make([]float64, nt),
		NEE:   make([]float64, nt),
		UStar: make([]float64, nt),
		Temp:  make([]float64, nt),
		Night: make([]bool, nt),
		Year:  2021,
	}
	for i := 0; i < nt; i++ {
		t := 1 + float64(i+1)/perDay
		hour := math.Mod(t, 1) * 24
		temp := 10 + 10*math.Sin(2*math.Pi*(t-110)/365) + rng.NormFloat64()
		u := 0.05 + 0.95*rng.Float64()
		resp := 2 * math.Exp(0.05*temp)
		s.T[i] = t
		s.Temp[i] = temp
		s.UStar[i] = u
		s.NEE[i] = resp*math.Min(u/threshold, 1) + 0.2*rng.NormFloat64()
		s.Night[i] = hour < 6 || hour >= 18
	}
	return s
}

// shortSeries has too few nighttime records for any stratification.
func shortSeries(n int) Series {
	s := Series{
		T:     make([]float64, n),
		NEE:   make([]float64, n),
		UStar: make([]float64, n),
		Temp:  make([]float64, n),
		Night: make([]bool, n),
	}
	for i := range s.T {
		s.T[i] = 1 + float64(i)/48
		s.NEE[i] = 1
		s.UStar[i] = 0.3
		s.Temp[i] = 10
		s.Night[i] = true
	}
	return s
}

// hingeSeries samples n evenly spaced points of a two-segment function with
// a small deterministic ripple.
func hingeSeries(n int, dx, x0, below, above float64) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = dx * float64(i+1)
		v := 1 + below*math.Min(x[i], x0) + above*math.Max(x[i]-x0, 0)
		y[i] = v + 0.01*math.Sin(1.7*float64(i))
	}
	return x, y
}

func allNaN(m [][]float64) bool {
	for _, row := range m {
		for _, v := range row {
			if !math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}
