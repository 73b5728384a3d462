package ustar

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBootstrapShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2

	res, err := Bootstrap(context.Background(), shortSeries(1000), 3, cfg)
	require.NoError(t, err)

	for _, g := range []*Grid[float64]{res.Cp2, res.Cp3} {
		nS, nK, nB := g.Shape()
		assert.Equal(t, []int{cfg.NSeasons, cfg.NStrataMax, 3}, []int{nS, nK, nB})
	}
	nS, nK, nB := res.Stats(ThreeParam).Shape()
	assert.Equal(t, []int{cfg.NSeasons, cfg.NStrataMax, 3}, []int{nS, nK, nB})
	assert.Equal(t, []bool{true, true, true}, res.Completed)
	assert.True(t, math.IsNaN(res.Cp2.At(0, 0, 2)))
}

func TestBootstrapFirstRunIsOriginalOrder(t *testing.T) {
	cfg := DefaultConfig()
	s := syntheticSeries(5, 0.3)

	res, err := Bootstrap(context.Background(), s, 2, cfg)
	require.NoError(t, err)

	want := EvaluateSeason(s, cfg)
	for i := 0; i < cfg.NSeasons; i++ {
		for j := 0; j < cfg.NStrataMax; j++ {
			if diff := cmp.Diff(want.Stats2[i][j], res.Stats2.At(i, j, 0), cmpopts.EquateNaNs()); diff != "" {
				t.Fatalf("season %d stratum %d differs (-want +got):\n%s", i, j, diff)
			}
			if diff := cmp.Diff(want.Cp3[i][j], res.Cp3.At(i, j, 0), cmpopts.EquateNaNs()); diff != "" {
				t.Fatalf("season %d stratum %d differs (-want +got):\n%s", i, j, diff)
			}
		}
	}
}

func TestBootstrapIndependentOfWorkers(t *testing.T) {
	s := syntheticSeries(11, 0.3)

	serial := DefaultConfig()
	serial.Workers = 1
	parallel := DefaultConfig()
	parallel.Workers = 4

	a, err := Bootstrap(context.Background(), s, 3, serial)
	require.NoError(t, err)
	b, err := Bootstrap(context.Background(), s, 3, parallel)
	require.NoError(t, err)

	opts := []cmp.Option{cmpopts.EquateNaNs(), cmp.AllowUnexported(Grid[float64]{}, Grid[Stats]{})}
	if diff := cmp.Diff(a, b, opts...); diff != "" {
		t.Errorf("results depend on worker count (-serial +parallel):\n%s", diff)
	}
}

func TestBootstrapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Bootstrap(ctx, shortSeries(1000), 4, DefaultConfig())

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, []bool{false, false, false, false}, res.Completed)
}

func TestBootstrapPanicsOnZeroRuns(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Bootstrap(context.Background(), shortSeries(10), 0, DefaultConfig())
	})
}

func TestResampleIndex(t *testing.T) {
	id := resampleIndex(5, 0, 1)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, id)

	a := resampleIndex(1000, 3, 1)
	assert.Equal(t, a, resampleIndex(1000, 3, 1))
	assert.NotEqual(t, a, resampleIndex(1000, 4, 1))
	assert.NotEqual(t, a, resampleIndex(1000, 3, 2))
	assert.True(t, sort.IntsAreSorted(a))
	for _, i := range a {
		assert.True(t, i >= 0 && i < 1000)
	}
}

func TestBootstrapEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	s := syntheticSeries(21, 0.3)

	res, err := Bootstrap(context.Background(), s, 3, cfg)
	require.NoError(t, err)

	sum := AssignThreshold(res.Stats(TwoParam), cfg)
	require.Empty(t, sum.Failure)
	assert.Equal(t, TwoParam, sum.Model)
	assert.Equal(t, ModeDeficit, sum.Mode)
	require.Len(t, sum.CpA, 3)
	for b, cp := range sum.CpA {
		assert.InDelta(t, 0.3, cp, 0.06, "boot %d", b)
		assert.Positive(t, sum.NA[b])
	}
	assert.NotEmpty(t, sum.CpW)
	assert.Len(t, sum.TW, len(sum.CpW))

	three := AssignThreshold(res.Stats(ThreeParam), cfg)
	assert.Equal(t, ThreeParam, three.Model)
}
