package ustar

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// BootstrapResult collects every bootstrap run of a site-year. Run 0 is
// the evaluation of the original record order.
type BootstrapResult struct {
	Cp2    *Grid[float64]
	Stats2 *Tensor
	Cp3    *Grid[float64]
	Stats3 *Tensor

	// Completed marks the runs that finished. Unfinished runs stay unset.
	Completed []bool
}

func newBootstrapResult(nSeasons, nStrata, nBoot int) *BootstrapResult {
	return &BootstrapResult{
		Cp2:       NewGrid(nSeasons, nStrata, nBoot, math.NaN()),
		Stats2:    NewTensor(nSeasons, nStrata, nBoot),
		Cp3:       NewGrid(nSeasons, nStrata, nBoot, math.NaN()),
		Stats3:    NewTensor(nSeasons, nStrata, nBoot),
		Completed: make([]bool, nBoot),
	}
}

// Stats returns the statistics tensor of model family m.
func (r *BootstrapResult) Stats(m Model) *Tensor {
	if m == ThreeParam {
		return r.Stats3
	}
	return r.Stats2
}

func (r *BootstrapResult) store(iBoot int, sr SeasonResult) {
	for i := range sr.Cp2 {
		for j := range sr.Cp2[i] {
			r.Cp2.Set(i, j, iBoot, sr.Cp2[i][j])
			r.Stats2.Set(i, j, iBoot, sr.Stats2[i][j])
			r.Cp3.Set(i, j, iBoot, sr.Cp3[i][j])
			r.Stats3.Set(i, j, iBoot, sr.Stats3[i][j])
		}
	}
	r.Completed[iBoot] = true
}

// Bootstrap evaluates the site-year nBoot times: once on the original
// records and nBoot-1 times on resamples drawn with replacement. Runs are
// spread over cfg.Workers goroutines and each writes only its own slots.
//
// When ctx is cancelled no further runs start; the partial result is
// returned together with the context error.
func Bootstrap(ctx context.Context, s Series, nBoot int, cfg Config) (*BootstrapResult, error) {
	s.Validate()
	if nBoot < 1 {
		panic(fmt.Sprintf("ustar: nBoot must be positive, got %d", nBoot))
	}
	log := cfg.logger()
	res := newBootstrapResult(cfg.NSeasons, cfg.NStrataMax, nBoot)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	nt := s.Len()
	for iBoot := 0; iBoot < nBoot; iBoot++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			idx := resampleIndex(nt, iBoot, cfg.Seed)
			res.store(iBoot, EvaluateSeason(s.resample(idx), cfg))
			log.Debugw("bootstrap run complete", "boot", iBoot, "done", done.Add(1), "of", nBoot)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return res, err
}

// resampleIndex returns the record indices of bootstrap run iBoot: the
// identity for run 0, otherwise nt sorted draws with replacement. Each run
// has its own generator so the draws do not depend on scheduling.
func resampleIndex(nt, iBoot int, seed uint64) []int {
	idx := make([]int, nt)
	if iBoot == 0 {
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewPCG(seed, uint64(iBoot)))
	for i := range idx {
		idx[i] = rng.IntN(nt)
	}
	sort.Ints(idx)
	return idx
}
