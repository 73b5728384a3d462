// Package ustar estimates the friction-velocity (u*) threshold below which
// nighttime eddy-covariance CO2 fluxes are unreliable.
//
// A site-year is split into season and temperature strata, each stratum is
// reduced to u* bins, and two competing piecewise regressions are fitted to
// locate a change point. The full evaluation is repeated over bootstrap
// resamples and pooled into one annual threshold per model family.
package ustar

import (
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
)

// Model identifies a change-point model family.
type Model int

const (
	// TwoParam is the operational model: a line below the change point and
	// zero slope at and above it.
	TwoParam Model = iota

	// ThreeParam is the diagnostic model: two connected line segments with
	// independent slopes.
	ThreeParam
)

// Models lists every model family in evaluation order.
var Models = [...]Model{TwoParam, ThreeParam}

func (m Model) String() string {
	switch m {
	case TwoParam:
		return "2-parameter"
	case ThreeParam:
		return "3-parameter"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// NParams returns the number of parameters of the full (broken) model.
func (m Model) NParams() int {
	return modelSpecs[m].nFull
}

// Series holds one site-year of half-hourly or hourly observations as
// parallel slices. Missing values are NaN.
type Series struct {
	T     []float64 // fractional day of year
	NEE   []float64
	UStar []float64
	Temp  []float64
	Night []bool

	// Year is the calendar year, 0 when unknown.
	Year int
}

// Len returns the number of records.
func (s Series) Len() int {
	return len(s.T)
}

// Validate panics unless all slices have the same length. Mismatched series
// are a programming error on the caller's side, not a data condition.
func (s Series) Validate() {
	n := len(s.T)
	if len(s.NEE) != n || len(s.UStar) != n || len(s.Temp) != n || len(s.Night) != n {
		panic(fmt.Sprintf("ustar: series length mismatch: t=%d NEE=%d uStar=%d T=%d night=%d",
			n, len(s.NEE), len(s.UStar), len(s.Temp), len(s.Night)))
	}
}

// resample returns a new series built from the given record indices.
func (s Series) resample(idx []int) Series {
	out := Series{
		T:     make([]float64, len(idx)),
		NEE:   make([]float64, len(idx)),
		UStar: make([]float64, len(idx)),
		Temp:  make([]float64, len(idx)),
		Night: make([]bool, len(idx)),
		Year:  s.Year,
	}
	for j, i := range idx {
		out.T[j] = s.T[i]
		out.NEE[j] = s.NEE[i]
		out.UStar[j] = s.UStar[i]
		out.Temp[j] = s.Temp[i]
		out.Night[j] = s.Night[i]
	}
	return out
}

// Stats is the change-point result for one stratum and one model family.
// Cp, Fmax and P are the raw values at the F maximum and are kept even when
// the change point is not significant.
type Stats struct {
	N    int
	Cp   float64
	Fmax float64
	P    float64

	B0   float64
	B1   float64
	B2   float64
	C2   float64
	CIB0 float64
	CIB1 float64
	CIB2 float64
	CIC2 float64

	Mt float64 // mean day of year of the stratum
	Ti float64
	Tf float64

	MT        float64 // mean temperature
	CIT       float64
	RUStarVsT float64
	PUStarVsT float64
}

// EmptyStats returns a fresh result with every numeric field unset.
func EmptyStats() Stats {
	nan := math.NaN()
	return Stats{
		Cp: nan, Fmax: nan, P: nan,
		B0: nan, B1: nan, B2: nan, C2: nan,
		CIB0: nan, CIB1: nan, CIB2: nan, CIC2: nan,
		Mt: nan, Ti: nan, Tf: nan,
		MT: nan, CIT: nan, RUStarVsT: nan, PUStarVsT: nan,
	}
}

// Grid is a dense three-dimensional array indexed by (season, stratum, boot).
type Grid[T any] struct {
	dims [3]int
	data []T
}

// NewGrid allocates a grid with every cell set to fill.
func NewGrid[T any](nSeasons, nStrata, nBoot int, fill T) *Grid[T] {
	g := &Grid[T]{
		dims: [3]int{nSeasons, nStrata, nBoot},
		data: make([]T, nSeasons*nStrata*nBoot),
	}
	for i := range g.data {
		g.data[i] = fill
	}
	return g
}

// Shape returns the grid dimensions.
func (g *Grid[T]) Shape() (nSeasons, nStrata, nBoot int) {
	return g.dims[0], g.dims[1], g.dims[2]
}

func (g *Grid[T]) offset(iSeason, iStrata, iBoot int) int {
	if iSeason < 0 || iSeason >= g.dims[0] || iStrata < 0 || iStrata >= g.dims[1] || iBoot < 0 || iBoot >= g.dims[2] {
		panic(fmt.Sprintf("ustar: grid index (%d,%d,%d) out of range %v", iSeason, iStrata, iBoot, g.dims))
	}
	return (iBoot*g.dims[0]+iSeason)*g.dims[1] + iStrata
}

// At returns the cell at (iSeason, iStrata, iBoot).
func (g *Grid[T]) At(iSeason, iStrata, iBoot int) T {
	return g.data[g.offset(iSeason, iStrata, iBoot)]
}

// Set stores v at (iSeason, iStrata, iBoot).
func (g *Grid[T]) Set(iSeason, iStrata, iBoot int, v T) {
	g.data[g.offset(iSeason, iStrata, iBoot)] = v
}

// Tensor holds the change-point statistics of every stratum of every
// bootstrap run for one model family.
type Tensor = Grid[Stats]

// NewTensor returns a tensor with every cell set to EmptyStats.
func NewTensor(nSeasons, nStrata, nBoot int) *Tensor {
	return NewGrid(nSeasons, nStrata, nBoot, EmptyStats())
}

// Config holds the stratification and significance parameters.
type Config struct {
	NSeasons      int
	NStrataMin    int
	NStrataMax    int
	NBins         int
	NPerBin       int
	NPerBinHourly int
	PSignificant  float64

	// Records with u* outside [UStarMin, UStarMax] are treated as missing.
	UStarMin float64
	UStarMax float64

	// Seed drives the bootstrap resampling.
	Seed    uint64
	Workers int

	Logger *zap.SugaredLogger
}

// DefaultConfig returns the standard parameter set.
func DefaultConfig() Config {
	return Config{
		NSeasons:      4,
		NStrataMin:    4,
		NStrataMax:    8,
		NBins:         50,
		NPerBin:       5,
		NPerBinHourly: 3,
		PSignificant:  0.05,
		UStarMin:      0,
		UStarMax:      3,
		Seed:          1,
		Workers:       runtime.NumCPU(),
	}
}

func (c Config) logger() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}

// minValidRecords is the smallest number of valid nighttime records a
// site-year needs before stratification is attempted.
func (c Config) minValidRecords(nPerBin int) int {
	return c.NSeasons * c.NStrataMin * c.NBins * nPerBin
}
