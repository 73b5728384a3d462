package ustar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cellStats returns a significant deficit-mode stratum result.
func cellStats(cp, mt float64) Stats {
	st := EmptyStats()
	st.N = 50
	st.Cp = cp
	st.P = 0.001
	st.Fmax = 40
	st.B0 = 0.5
	st.B1 = 4
	st.CIB1 = 0.5
	st.Mt = mt
	return st
}

func fillTensor(nS, nK, nB int, f func(i, k, b int) Stats) *Tensor {
	tn := NewTensor(nS, nK, nB)
	for b := 0; b < nB; b++ {
		for i := 0; i < nS; i++ {
			for k := 0; k < nK; k++ {
				tn.Set(i, k, b, f(i, k, b))
			}
		}
	}
	return tn
}

func cellDay(i, k, nK int) float64 {
	return 10 + float64(i*nK+k)*340/float64(4*nK)
}

func TestAssignThresholdNoSignificantStrata(t *testing.T) {
	tn := fillTensor(4, 4, 3, func(i, k, b int) Stats {
		st := cellStats(0.3, cellDay(i, k, 4))
		st.P = 1
		return st
	})

	sum := AssignThreshold(tn, DefaultConfig())

	assert.NotEmpty(t, sum.Failure)
	assert.Empty(t, sum.CpA)
	assert.Zero(t, sum.FracSig)
	assert.Zero(t, sum.FracSelect)
}

func TestAssignThresholdNothingEvaluated(t *testing.T) {
	sum := AssignThreshold(NewTensor(4, 8, 2), DefaultConfig())

	assert.NotEmpty(t, sum.Failure)
	assert.Empty(t, sum.CpA)
	assert.True(t, math.IsNaN(sum.FracSig))
}

func TestAssignThresholdTooFewSelected(t *testing.T) {
	tn := fillTensor(4, 8, 4, func(i, k, b int) Stats {
		st := cellStats(0.3, cellDay(i, k, 8))
		if k != 0 || i != 0 {
			st.P = 0.5
		}
		return st
	})

	sum := AssignThreshold(tn, DefaultConfig())

	assert.Contains(t, sum.Failure, "too few")
	assert.Empty(t, sum.CpA)
	assert.InDelta(t, 4.0/128, sum.FracSelect, 1e-12)
}

func TestAssignThresholdPoolsRuns(t *testing.T) {
	const nS, nK, nB = 4, 4, 3
	tn := fillTensor(nS, nK, nB, func(i, k, b int) Stats {
		return cellStats(0.28+0.01*float64((i+k+b)%5), cellDay(i, k, nK))
	})
	outlier := cellStats(5, 100)
	tn.Set(1, 2, 1, outlier)

	sum := AssignThreshold(tn, DefaultConfig())

	require.Empty(t, sum.Failure)
	assert.Equal(t, TwoParam, sum.Model)
	assert.Equal(t, ModeDeficit, sum.Mode)
	assert.InDelta(t, 1, sum.FracSig, 1e-12)
	assert.InDelta(t, 1, sum.FracModeD, 1e-12)
	assert.InDelta(t, 47.0/48, sum.FracSelect, 1e-12)
	assert.False(t, sum.Selected.At(1, 2, 1))
	assert.True(t, sum.Selected.At(1, 2, 0))

	require.Len(t, sum.CpA, nB)
	assert.Equal(t, []int{16, 15, 16}, sum.NA)
	for b, cp := range sum.CpA {
		assert.InDelta(t, 0.3, cp, 0.02, "boot %d", b)
	}

	assert.Len(t, sum.CpW, nS*nK)
	assert.Len(t, sum.TW, len(sum.CpW))
	for j := 1; j < len(sum.TW); j++ {
		assert.Less(t, sum.TW[j-1], sum.TW[j])
	}
}

func TestAssignThresholdExcessMode(t *testing.T) {
	tn := fillTensor(4, 4, 2, func(i, k, b int) Stats {
		st := cellStats(0.3, cellDay(i, k, 4))
		if k > 0 {
			st.B1 = -2
		}
		return st
	})

	sum := AssignThreshold(tn, DefaultConfig())

	require.Empty(t, sum.Failure)
	assert.Equal(t, ModeExcess, sum.Mode)
	assert.InDelta(t, 0.25, sum.FracModeD, 1e-12)
	assert.Equal(t, []int{12, 12}, sum.NA)
}

func TestAssignThresholdThreeParam(t *testing.T) {
	tn := fillTensor(4, 4, 2, func(i, k, b int) Stats {
		st := cellStats(0.3, cellDay(i, k, 4))
		st.B1 = 1
		st.B2 = -1.5
		st.C2 = -0.5
		st.CIC2 = 0.2
		return st
	})

	sum := AssignThreshold(tn, DefaultConfig())

	require.Empty(t, sum.Failure)
	assert.Equal(t, ThreeParam, sum.Model)
	assert.Equal(t, ModeDeficit, sum.Mode)
	assert.InDeltaSlice(t, []float64{0.3, 0.3}, sum.CpA, 1e-12)
}

func TestAssignThresholdSeasonalSine(t *testing.T) {
	want := SineFit{Offset: 0.3, Amplitude: 0.1, Phase: 30}
	tn := fillTensor(4, 8, 2, func(i, k, b int) Stats {
		day := cellDay(i, k, 8) + float64(b)
		return cellStats(want.Eval(day), day)
	})

	sum := AssignThreshold(tn, DefaultConfig())

	require.Empty(t, sum.Failure)
	assert.InDelta(t, want.Offset, sum.Sine.Offset, 1e-9)
	assert.InDelta(t, want.Amplitude, sum.Sine.Amplitude, 1e-9)
	assert.InDelta(t, want.Phase, sum.Sine.Phase, 1e-6)
}

func TestFitSineTooFewPoints(t *testing.T) {
	_, ok := fitSine([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestAnnualSummaryThreshold(t *testing.T) {
	sum := AnnualSummary{CpA: []float64{0.5, 0.1, math.NaN(), 0.3, 0.2, 0.4}}
	lo, mid, hi := sum.Threshold()
	assert.InDelta(t, 0.1, lo, 1e-12)
	assert.InDelta(t, 0.3, mid, 1e-12)
	assert.InDelta(t, 0.5, hi, 1e-12)

	lo, mid, hi = AnnualSummary{}.Threshold()
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(mid))
	assert.True(t, math.IsNaN(hi))
}
