// Package simulate generates synthetic site-years with a known u* threshold.
package simulate

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/chrissnell/ustarthreshold/internal/ustar"
)

// Options controls the generated site-year
type Options struct {
	Seed      uint64
	Year      int
	Threshold float64

	// PerDay is 48 for half-hourly or 24 for hourly records.
	PerDay int

	// Noise is the standard deviation of the NEE noise.
	Noise float64

	// MissingFrac of the NEE values are dropped at random.
	MissingFrac float64
}

// DefaultOptions returns a half-hourly year with a 0.3 m/s threshold
func DefaultOptions() Options {
	return Options{
		Seed:      1,
		Year:      2021,
		Threshold: 0.3,
		PerDay:    48,
		Noise:     0.2,
	}
}

// Generate builds a year of records whose nighttime NEE rises linearly with
// u* up to the threshold and is flat above it. Respiration follows an
// annual temperature cycle.
func Generate(o Options) ustar.Series {
	if o.PerDay <= 0 {
		o.PerDay = 48
	}
	days := 365
	if o.Year%4 == 0 && (o.Year%100 != 0 || o.Year%400 == 0) {
		days = 366
	}
	nt := days * o.PerDay
	rng := rand.New(rand.NewPCG(o.Seed, 7))
	s := ustar.Series{
		T:     make([]float64, nt),
		NEE:   make([]float64, nt),
		UStar: make([]float64, nt),
		Temp:  make([]float64, nt),
		Night: make([]bool, nt),
		Year:  o.Year,
	}
	per := float64(o.PerDay)
	for i := 0; i < nt; i++ {
		t := 1 + float64(i+1)/per
		hour := math.Mod(t, 1) * 24
		temp := 10 + 10*math.Sin(2*math.Pi*(t-110)/365) + rng.NormFloat64()
		u := 0.05 + 0.95*rng.Float64()
		resp := 2 * math.Exp(0.05*temp)

		s.T[i] = t
		s.Temp[i] = temp
		s.UStar[i] = u
		s.NEE[i] = resp*math.Min(u/o.Threshold, 1) + o.Noise*rng.NormFloat64()
		s.Night[i] = hour < 6 || hour >= 18
		if o.MissingFrac > 0 && rng.Float64() < o.MissingFrac {
			s.NEE[i] = math.NaN()
		}
	}
	return s
}

// WriteCSV writes s in the input column layout, replacing NaN with sentinel.
func WriteCSV(w io.Writer, s ustar.Series, sentinel float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"t", "NEE", "uStar", "T", "fNight"}); err != nil {
		return err
	}
	format := func(v float64) string {
		if math.IsNaN(v) {
			v = sentinel
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	for i := range s.T {
		night := "0"
		if s.Night[i] {
			night = "1"
		}
		row := []string{format(s.T[i]), format(s.NEE[i]), format(s.UStar[i]), format(s.Temp[i]), night}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
