package ustar

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrNonPositiveWidth is returned by Bin when a scalar bin width is <= 0.
var ErrNonPositiveWidth = errors.New("ustar: bin width must be positive")

type binKind int

const (
	binOccupancy binKind = iota
	binCount
	binWidth
	binEdges
)

// BinSpec selects how Bin divides the x axis. The zero value requests
// equal-occupancy bins holding about nPerBin observations each.
type BinSpec struct {
	kind  binKind
	count int
	width float64
	edges []float64
}

// BinByCount requests n equal-occupancy bins by percentile of x.
func BinByCount(n int) BinSpec {
	return BinSpec{kind: binCount, count: n}
}

// BinByWidth requests bins of constant width dx starting at min(x).
func BinByWidth(dx float64) BinSpec {
	return BinSpec{kind: binWidth, width: dx}
}

// BinByEdges requests bins with the given ascending lower edges. The last
// bin extends to max(x).
func BinByEdges(edges []float64) BinSpec {
	return BinSpec{kind: binEdges, edges: append([]float64(nil), edges...)}
}

// BinResult holds the retained bins in ascending x order.
type BinResult struct {
	N  []int
	MX []float64
	MY []float64
}

// Len returns the number of retained bins.
func (b BinResult) Len() int {
	return len(b.MX)
}

// Bin reduces the paired observations (x, y) to bin means. Pairs with a
// missing member are ignored, and bins with fewer than nPerBin pairs are
// dropped. Bin k covers [e_k, e_k+1); the last bin covers [e_last, max(x)].
// Bin panics if x and y differ in length.
func Bin(x, y []float64, spec BinSpec, nPerBin int) (BinResult, error) {
	if len(x) != len(y) {
		panic(fmt.Sprintf("ustar: Bin length mismatch: x=%d y=%d", len(x), len(y)))
	}
	if spec.kind == binWidth && !(spec.width > 0) {
		return BinResult{}, fmt.Errorf("%w: dx=%g", ErrNonPositiveWidth, spec.width)
	}
	if nPerBin < 1 {
		nPerBin = 1
	}

	xs, ys := sortedPairs(x, y)
	n := len(xs)
	if n == 0 {
		return BinResult{}, nil
	}

	var lower []float64
	switch spec.kind {
	case binOccupancy:
		lower = occupancyEdges(xs, n/nPerBin)
	case binCount:
		lower = occupancyEdges(xs, spec.count)
	case binWidth:
		lo, hi := xs[0], xs[n-1]
		for k := 0; ; k++ {
			e := lo + float64(k)*spec.width
			if e > hi {
				break
			}
			lower = append(lower, e)
		}
	case binEdges:
		lower = spec.edges
	}

	var out BinResult
	for k, lo := range lower {
		start := sort.SearchFloat64s(xs, lo)
		end := n
		if k+1 < len(lower) {
			end = sort.SearchFloat64s(xs, lower[k+1])
		}
		if end-start < nPerBin {
			continue
		}
		out.N = append(out.N, end-start)
		out.MX = append(out.MX, stat.Mean(xs[start:end], nil))
		out.MY = append(out.MY, stat.Mean(ys[start:end], nil))
	}
	return out, nil
}

// occupancyEdges returns the lower edges of nBins equal-occupancy bins of
// the sorted values xs.
func occupancyEdges(xs []float64, nBins int) []float64 {
	if nBins < 1 {
		return nil
	}
	n := len(xs)
	ps := linspace(0, 100, nBins+1)
	edges := make([]float64, nBins)
	for k := range edges {
		edges[k] = percentileSorted(xs, n, ps[k])
	}
	return edges
}

// sortedPairs drops pairs with a missing member and sorts the rest by x.
func sortedPairs(x, y []float64) ([]float64, []float64) {
	idx := make([]int, 0, len(x))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	for j, i := range idx {
		xs[j] = x[i]
		ys[j] = y[i]
	}
	return xs, ys
}
