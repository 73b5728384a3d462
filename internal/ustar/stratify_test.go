package ustar

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSeasonSyntheticThreshold(t *testing.T) {
	cfg := DefaultConfig()
	s := syntheticSeries(42, 0.3)

	got := EvaluateSeason(s, cfg)

	require.Len(t, got.Cp2, cfg.NSeasons)
	var accepted []float64
	for i := range got.Cp2 {
		require.Len(t, got.Cp2[i], cfg.NStrataMax)
		for j, cp := range got.Cp2[i] {
			st := got.Stats2[i][j]
			assert.False(t, math.IsNaN(st.Mt), "season %d stratum %d not evaluated", i, j)
			assert.LessOrEqual(t, st.Ti, st.Mt)
			assert.GreaterOrEqual(t, st.Tf, st.Mt)
			if !math.IsNaN(cp) {
				accepted = append(accepted, cp)
				assert.LessOrEqual(t, st.P, cfg.PSignificant)
			}
		}
	}
	require.GreaterOrEqual(t, len(accepted), 3*cfg.NSeasons*cfg.NStrataMax/4)
	assert.InDelta(t, 0.3, median(accepted), 0.06)
}

func TestEvaluateSeasonStrataOrderedByTemperature(t *testing.T) {
	cfg := DefaultConfig()
	got := EvaluateSeason(syntheticSeries(3, 0.3), cfg)

	for i := range got.Stats2 {
		for j := 1; j < len(got.Stats2[i]); j++ {
			assert.Less(t, got.Stats2[i][j-1].MT, got.Stats2[i][j].MT, "season %d", i)
		}
	}
}

func TestEvaluateSeasonMissingUStar(t *testing.T) {
	s := syntheticSeries(1, 0.3)
	for i := range s.UStar {
		s.UStar[i] = math.NaN()
	}

	got := EvaluateSeason(s, DefaultConfig())

	assert.True(t, allNaN(got.Cp2))
	assert.True(t, allNaN(got.Cp3))
	for i := range got.Stats2 {
		for j := range got.Stats2[i] {
			assert.True(t, math.IsNaN(got.Stats2[i][j].Cp))
			assert.True(t, math.IsNaN(got.Stats3[i][j].Mt))
		}
	}
}

func TestEvaluateSeasonUStarOutOfRange(t *testing.T) {
	s := syntheticSeries(1, 0.3)
	for i := range s.UStar {
		s.UStar[i] += 5
	}

	got := EvaluateSeason(s, DefaultConfig())

	assert.True(t, allNaN(got.Cp2))
}

func TestEvaluateSeasonTooFewRecords(t *testing.T) {
	got := EvaluateSeason(shortSeries(500), DefaultConfig())

	assert.True(t, allNaN(got.Cp2))
	assert.True(t, allNaN(got.Cp3))
}

func TestEvaluateSeasonIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	s := syntheticSeries(9, 0.25)
	before := append([]float64(nil), s.NEE...)

	first := EvaluateSeason(s, cfg)
	second := EvaluateSeason(s, cfg)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("EvaluateSeason() not repeatable (-first +second):\n%s", diff)
	}
	assert.Equal(t, before, s.NEE)
}

func TestEvaluateSeasonLengthMismatchPanics(t *testing.T) {
	s := shortSeries(10)
	s.Night = s.Night[:5]
	assert.Panics(t, func() { EvaluateSeason(s, DefaultConfig()) })
}

func TestSeasonWindows(t *testing.T) {
	tests := []struct {
		n, nSeasons int
		want        [][2]int
	}{
		{n: 8, nSeasons: 4, want: [][2]int{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
		{n: 10, nSeasons: 4, want: [][2]int{{0, 3}, {3, 5}, {5, 7}, {7, 10}}},
		{n: 11, nSeasons: 4, want: [][2]int{{0, 4}, {4, 6}, {6, 8}, {8, 11}}},
		{n: 7, nSeasons: 1, want: [][2]int{{0, 7}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seasonWindows(tt.n, tt.nSeasons), "n=%d nSeasons=%d", tt.n, tt.nSeasons)
	}
}

func TestDecemberFirst(t *testing.T) {
	tests := []struct {
		name      string
		t         []float64
		year      int
		wantOrder []int
		wantT     []float64
	}{
		{
			name:      "common year",
			t:         []float64{1, 200, 340, 360},
			year:      2021,
			wantOrder: []int{2, 3, 0, 1},
			wantT:     []float64{-26, -6, 1, 200},
		},
		{
			name:      "leap year",
			t:         []float64{1, 200, 340, 366.5},
			year:      2020,
			wantOrder: []int{2, 3, 0, 1},
			wantT:     []float64{-27, -0.5, 1, 200},
		},
		{
			name:      "leap year inferred",
			t:         []float64{1, 335.5, 366.5},
			wantOrder: []int{2, 0, 1},
			wantT:     []float64{-0.5, 1, 335.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, shifted := decemberFirst(tt.t, tt.year)
			assert.Equal(t, tt.wantOrder, order)
			assert.InDeltaSlice(t, tt.wantT, shifted, 1e-12)
		})
	}
}

func TestIsHourly(t *testing.T) {
	hourly := make([]float64, 24*10)
	halfHourly := make([]float64, 48*10)
	for i := range hourly {
		hourly[i] = 1 + float64(i)/24
	}
	for i := range halfHourly {
		halfHourly[i] = 1 + float64(i)/48
	}
	assert.True(t, isHourly(hourly))
	assert.False(t, isHourly(halfHourly))
	assert.False(t, isHourly([]float64{1}))
}
