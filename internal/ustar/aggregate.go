package ustar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	minFracSelect  = 0.10
	maxOutlierNorm = 5.0
	daysPerYear    = 365.25
)

// Change-point modes.
const (
	ModeDeficit = "D" // flux rises with u* and saturates above the threshold
	ModeExcess  = "E"
)

// SineFit is the annual cycle Cp ≈ Offset + Amplitude·sin(2π(t+Phase)/365.25)
// with Amplitude >= 0 and Phase in [0, 365.25) days.
type SineFit struct {
	Offset    float64
	Amplitude float64
	Phase     float64
}

// Eval returns the fitted threshold at day of year t.
func (s SineFit) Eval(t float64) float64 {
	return s.Offset + s.Amplitude*math.Sin(2*math.Pi*(t+s.Phase)/daysPerYear)
}

// AnnualSummary is the pooled threshold estimate of one model family.
type AnnualSummary struct {
	Model Model
	Mode  string

	// CpA and NA have one entry per bootstrap run: the mean accepted
	// change point and the number of strata behind it.
	CpA []float64
	NA  []int

	// TW and CpW trace the threshold through the year.
	TW  []float64
	CpW []float64

	Sine     SineFit
	Selected *Grid[bool]

	FracSig    float64
	FracModeD  float64
	FracSelect float64

	// Failure explains why no estimate was produced; empty on success.
	Failure string
}

// Threshold returns the 2.5th, 50th and 97.5th percentiles of the annual
// thresholds over the bootstrap runs, NaN when none were produced.
func (s AnnualSummary) Threshold() (lo, mid, hi float64) {
	q := percentiles(s.CpA, []float64{2.5, 50, 97.5})
	return q[0], q[1], q[2]
}

type aggCell struct {
	iSeason, iStrata, iBoot int
	st                      Stats
}

// AssignThreshold pools every stratum of every bootstrap run in the tensor
// into one annual threshold per run, a seasonal threshold curve and the
// selection diagnostics. Aggregation failures are reported through the
// Failure field.
func AssignThreshold(t *Tensor, cfg Config) AnnualSummary {
	log := cfg.logger()
	nS, nK, nB := t.Shape()
	sum := AnnualSummary{
		Selected:   NewGrid(nS, nK, nB, false),
		Sine:       SineFit{Offset: math.NaN(), Amplitude: math.NaN(), Phase: math.NaN()},
		FracSig:    math.NaN(),
		FracModeD:  math.NaN(),
		FracSelect: math.NaN(),
	}

	var cells []aggCell
	nPar := 2
	for b := 0; b < nB; b++ {
		for i := 0; i < nS; i++ {
			for k := 0; k < nK; k++ {
				st := t.At(i, k, b)
				if !math.IsNaN(st.C2) {
					nPar = 3
				}
				cells = append(cells, aggCell{i, k, b, st})
			}
		}
	}
	sum.Model = TwoParam
	if nPar == 3 {
		sum.Model = ThreeParam
	}

	var modeD, modeE []aggCell
	nTry := 0
	for _, c := range cells {
		if math.IsNaN(c.st.Mt) {
			continue
		}
		nTry++
		c2 := 0.0
		if nPar == 3 {
			c2 = c.st.C2
		}
		if math.IsNaN(c.st.Cp) || math.IsNaN(c.st.B1) || math.IsNaN(c2) || math.IsNaN(c.st.P) {
			continue
		}
		if c.st.P > cfg.PSignificant {
			continue
		}
		if c.st.B1 >= c2 {
			modeD = append(modeD, c)
		} else {
			modeE = append(modeE, c)
		}
	}

	if nTry == 0 {
		sum.Failure = "no strata were evaluated"
		log.Debugw("threshold aggregation failed", "model", sum.Model, "reason", sum.Failure)
		return sum
	}
	nSig := len(modeD) + len(modeE)
	sum.FracSig = float64(nSig) / float64(nTry)
	if nSig == 0 {
		sum.FracSelect = 0
		sum.Failure = fmt.Sprintf("no significant change points among %d strata", nTry)
		log.Debugw("threshold aggregation failed", "model", sum.Model, "reason", sum.Failure)
		return sum
	}
	sum.FracModeD = float64(len(modeD)) / float64(nSig)

	selected := modeD
	sum.Mode = ModeDeficit
	if len(modeE) > len(modeD) {
		selected = modeE
		sum.Mode = ModeExcess
	}
	if frac := float64(len(selected)) / float64(nTry); frac < minFracSelect {
		sum.FracSelect = frac
		sum.Failure = fmt.Sprintf("too few successful detections: %d of %d strata (%.1f%%) in mode %s",
			len(selected), nTry, 100*frac, sum.Mode)
		log.Debugw("threshold aggregation failed", "model", sum.Model, "reason", sum.Failure)
		return sum
	}

	selected = rejectOutliers(selected, nPar)
	sum.FracSelect = float64(len(selected)) / float64(nTry)
	for _, c := range selected {
		sum.Selected.Set(c.iSeason, c.iStrata, c.iBoot, true)
	}

	sum.CpA = make([]float64, nB)
	sum.NA = make([]int, nB)
	perBoot := make([][]float64, nB)
	for _, c := range selected {
		perBoot[c.iBoot] = append(perBoot[c.iBoot], c.st.Cp)
	}
	for b := range perBoot {
		sum.NA[b] = len(perBoot[b])
		sum.CpA[b] = math.NaN()
		if len(perBoot[b]) > 0 {
			sum.CpA[b] = stat.Mean(perBoot[b], nil)
		}
	}

	mt := make([]float64, len(selected))
	cp := make([]float64, len(selected))
	for j, c := range selected {
		mt[j], cp[j] = c.st.Mt, c.st.Cp
	}
	nW := seasonalBinCount(cells, nB)
	if bins, err := Bin(mt, cp, BinByCount(nW), 1); err == nil {
		sum.TW, sum.CpW = bins.MX, bins.MY
	}

	if fit, ok := fitSine(mt, cp); ok {
		sum.Sine = fit
	}
	return sum
}

// rejectOutliers drops cells whose change point or slope features deviate
// from the median by more than maxOutlierNorm interquartile ranges.
func rejectOutliers(cells []aggCell, nPar int) []aggCell {
	feature := func(c aggCell) []float64 {
		if nPar == 3 {
			return []float64{c.st.Cp, c.st.B1, c.st.C2, c.st.CIB1, c.st.CIC2}
		}
		return []float64{c.st.Cp, c.st.B1, c.st.CIB1}
	}
	nF := 3
	if nPar == 3 {
		nF = 5
	}
	cols := make([][]float64, nF)
	for _, c := range cells {
		for f, v := range feature(c) {
			cols[f] = append(cols[f], v)
		}
	}
	med := make([]float64, nF)
	iqr := make([]float64, nF)
	for f, col := range cols {
		q := percentiles(col, []float64{25, 50, 75})
		med[f], iqr[f] = q[1], q[2]-q[0]
	}

	kept := make([]aggCell, 0, len(cells))
	for _, c := range cells {
		worst := 0.0
		for f, v := range feature(c) {
			if !(iqr[f] > 0) || math.IsNaN(v) {
				continue
			}
			worst = math.Max(worst, math.Abs(v-med[f])/iqr[f])
		}
		if worst <= maxOutlierNorm {
			kept = append(kept, c)
		}
	}
	return kept
}

// seasonalBinCount is the median number of evaluated strata per bootstrap
// run, at least one.
func seasonalBinCount(cells []aggCell, nBoot int) int {
	counts := make([]float64, nBoot)
	for _, c := range cells {
		if !math.IsNaN(c.st.Mt) {
			counts[c.iBoot]++
		}
	}
	return max(1, int(math.Round(median(counts))))
}

// fitSine fits Cp = b0 + a·sin(ωt) + b·cos(ωt) by least squares and
// returns it in amplitude and phase form.
func fitSine(t, cp []float64) (SineFit, bool) {
	n := len(t)
	if n < 4 {
		return SineFit{}, false
	}
	omega := 2 * math.Pi / daysPerYear
	X := mat.NewDense(n, 3, nil)
	for i, v := range t {
		X.Set(i, 0, 1)
		X.Set(i, 1, math.Sin(omega*v))
		X.Set(i, 2, math.Cos(omega*v))
	}
	fit, ok := fitOLS(X, mat.NewVecDense(n, append([]float64(nil), cp...)), false)
	if !ok {
		return SineFit{}, false
	}
	a, b := fit.coef[1], fit.coef[2]
	phase := math.Mod(math.Atan2(b, a)/omega, daysPerYear)
	if phase < 0 {
		phase += daysPerYear
	}
	if phase >= daysPerYear {
		phase = 0
	}
	return SineFit{Offset: fit.coef[0], Amplitude: math.Hypot(a, b), Phase: phase}, true
}
