package ustar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(lo, hi float64) []float64 {
	var out []float64
	for v := lo; v <= hi; v++ {
		out = append(out, v)
	}
	return out
}

func reversed(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[len(x)-1-i] = v
	}
	return out
}

func TestBin(t *testing.T) {
	x := seq(1, 10)
	y := reversed(x)

	tests := []struct {
		name    string
		spec    BinSpec
		nPerBin int
		wantN   []int
		wantMX  []float64
		wantMY  []float64
	}{
		{
			name:    "equal occupancy from nPerBin",
			spec:    BinSpec{},
			nPerBin: 2,
			wantN:   []int{2, 2, 2, 2, 2},
			wantMX:  []float64{1.5, 3.5, 5.5, 7.5, 9.5},
			wantMY:  []float64{9.5, 7.5, 5.5, 3.5, 1.5},
		},
		{
			name:    "bin count",
			spec:    BinByCount(5),
			nPerBin: 1,
			wantN:   []int{2, 2, 2, 2, 2},
			wantMX:  []float64{1.5, 3.5, 5.5, 7.5, 9.5},
			wantMY:  []float64{9.5, 7.5, 5.5, 3.5, 1.5},
		},
		{
			name:    "constant width",
			spec:    BinByWidth(2),
			nPerBin: 1,
			wantN:   []int{2, 2, 2, 2, 2},
			wantMX:  []float64{1.5, 3.5, 5.5, 7.5, 9.5},
			wantMY:  []float64{9.5, 7.5, 5.5, 3.5, 1.5},
		},
		{
			name:    "explicit lower edges",
			spec:    BinByEdges([]float64{1, 4, 7}),
			nPerBin: 1,
			wantN:   []int{3, 3, 4},
			wantMX:  []float64{2, 5, 8.5},
			wantMY:  []float64{9, 6, 2.5},
		},
		{
			name:    "sparse bins dropped",
			spec:    BinByEdges([]float64{1, 4, 7}),
			nPerBin: 4,
			wantN:   []int{4},
			wantMX:  []float64{8.5},
			wantMY:  []float64{2.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bin(x, y, tt.spec, tt.nPerBin)
			require.NoError(t, err)
			assert.Equal(t, tt.wantN, got.N)
			assert.InDeltaSlice(t, tt.wantMX, got.MX, 1e-12)
			assert.InDeltaSlice(t, tt.wantMY, got.MY, 1e-12)
		})
	}
}

func TestBinNonPositiveWidth(t *testing.T) {
	for _, dx := range []float64{-2, 0, math.NaN()} {
		got, err := Bin(seq(1, 10), seq(1, 10), BinByWidth(dx), 1)
		require.ErrorIs(t, err, ErrNonPositiveWidth)
		assert.Zero(t, got.Len())
	}
}

func TestBinIgnoresMissingPairs(t *testing.T) {
	x := []float64{1, 2, math.NaN(), 4, 5, 6}
	y := []float64{1, math.NaN(), 3, 4, 5, 6}

	got, err := Bin(x, y, BinByCount(2), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, got.N)
	assert.InDeltaSlice(t, []float64{2.5, 5.5}, got.MX, 1e-12)
	assert.InDeltaSlice(t, []float64{2.5, 5.5}, got.MY, 1e-12)
}

func TestBinUnsortedInput(t *testing.T) {
	x := []float64{9, 3, 7, 1, 5, 2, 10, 4, 8, 6}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 11 - v
	}

	got, err := Bin(x, y, BinByCount(5), 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.5, 3.5, 5.5, 7.5, 9.5}, got.MX, 1e-12)
	assert.InDeltaSlice(t, []float64{9.5, 7.5, 5.5, 3.5, 1.5}, got.MY, 1e-12)
}

func TestBinEmpty(t *testing.T) {
	got, err := Bin([]float64{math.NaN()}, []float64{1}, BinSpec{}, 1)
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestBinLengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Bin([]float64{1, 2}, []float64{1}, BinSpec{}, 1)
	})
}

func TestPercentiles(t *testing.T) {
	x := append(seq(1, 10), math.NaN())
	got := percentiles(x, []float64{0, 5, 20, 50, 97.5, 100})
	assert.InDeltaSlice(t, []float64{1, 1, 2.5, 5.5, 10, 10}, got, 1e-12)

	assert.True(t, math.IsNaN(percentiles(nil, []float64{50})[0]))
}
