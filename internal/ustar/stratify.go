package ustar

import (
	"math"
	"sort"
)

// SeasonResult holds the change points of one evaluation of a site-year,
// indexed [season][stratum]. Strata a season did not use stay unset.
type SeasonResult struct {
	Cp2    [][]float64
	Stats2 [][]Stats
	Cp3    [][]float64
	Stats3 [][]Stats
}

func newSeasonResult(nSeasons, nStrata int) SeasonResult {
	r := SeasonResult{
		Cp2:    make([][]float64, nSeasons),
		Stats2: make([][]Stats, nSeasons),
		Cp3:    make([][]float64, nSeasons),
		Stats3: make([][]Stats, nSeasons),
	}
	for i := 0; i < nSeasons; i++ {
		r.Cp2[i] = make([]float64, nStrata)
		r.Cp3[i] = make([]float64, nStrata)
		r.Stats2[i] = make([]Stats, nStrata)
		r.Stats3[i] = make([]Stats, nStrata)
		for j := 0; j < nStrata; j++ {
			r.Cp2[i][j] = math.NaN()
			r.Cp3[i][j] = math.NaN()
			r.Stats2[i][j] = EmptyStats()
			r.Stats3[i][j] = EmptyStats()
		}
	}
	return r
}

// EvaluateSeason splits one site-year into season and temperature strata and
// detects a change point in every stratum with both model families. The
// series is not modified.
func EvaluateSeason(s Series, cfg Config) SeasonResult {
	s.Validate()
	log := cfg.logger()
	out := newSeasonResult(cfg.NSeasons, cfg.NStrataMax)

	nPerBin := cfg.NPerBin
	if isHourly(s.T) {
		nPerBin = cfg.NPerBinHourly
	}

	order, t := decemberFirst(s.T, s.Year)
	uStar := make([]float64, len(order))
	valid := make([]int, 0, len(order))
	for j, i := range order {
		u := s.UStar[i]
		if u < cfg.UStarMin || u > cfg.UStarMax {
			u = math.NaN()
		}
		uStar[j] = u
		if s.Night[i] && !math.IsNaN(t[j]) && !math.IsNaN(s.NEE[i]) && !math.IsNaN(u) && !math.IsNaN(s.Temp[i]) {
			valid = append(valid, j)
		}
	}
	if need := cfg.minValidRecords(nPerBin); len(valid) < need {
		log.Debugw("too few valid nighttime records", "valid", len(valid), "required", need)
		return out
	}
	nee := make([]float64, len(order))
	temp := make([]float64, len(order))
	for j, i := range order {
		nee[j] = s.NEE[i]
		temp[j] = s.Temp[i]
	}

	for iSeason, window := range seasonWindows(len(valid), cfg.NSeasons) {
		season := valid[window[0]:window[1]]
		nStrata := len(season) / (cfg.NBins * nPerBin)
		nStrata = max(cfg.NStrataMin, min(nStrata, cfg.NStrataMax))

		seasonT := make([]float64, len(season))
		for k, j := range season {
			seasonT[k] = temp[j]
		}
		sort.Float64s(seasonT)
		edges := occupancyEdges(seasonT, nStrata)

		for iStrata := 0; iStrata < nStrata; iStrata++ {
			lo, hi := edges[iStrata], math.Inf(1)
			if iStrata+1 < nStrata {
				hi = edges[iStrata+1]
			}
			var stratum []int
			for _, j := range season {
				if temp[j] >= lo && temp[j] < hi {
					stratum = append(stratum, j)
				}
			}
			if len(stratum) == 0 {
				continue
			}
			two, three := evaluateStratum(stratum, t, nee, uStar, temp, nPerBin, cfg)
			out.Cp2[iSeason][iStrata] = two.Cp
			out.Stats2[iSeason][iStrata] = two.Stats
			out.Cp3[iSeason][iStrata] = three.Cp
			out.Stats3[iSeason][iStrata] = three.Stats
		}
	}
	return out
}

// evaluateStratum bins one stratum, runs both change-point models and adds
// the stratum's time and temperature descriptors to both results.
func evaluateStratum(idx []int, t, nee, uStar, temp []float64, nPerBin int, cfg Config) (two, three Detection) {
	n := len(idx)
	st := make([]float64, n)
	su := make([]float64, n)
	sn := make([]float64, n)
	sT := make([]float64, n)
	for k, j := range idx {
		st[k], su[k], sn[k], sT[k] = t[j], uStar[j], nee[j], temp[j]
	}

	nBins := min(cfg.NBins, n/nPerBin)
	binsNEE, _ := Bin(su, sn, BinByCount(nBins), nPerBin)
	two, three = FindChangePoint(binsNEE.MX, binsNEE.MY, cfg.PSignificant)

	binsT, _ := Bin(su, sT, BinByCount(nBins), nPerBin)
	r, p := correlation(binsT.MX, binsT.MY)
	ci := percentiles(sT, []float64{2.5, 97.5})

	for _, d := range []*Detection{&two, &three} {
		d.Stats.Mt = meanFinite(st)
		d.Stats.Ti = st[0]
		d.Stats.Tf = st[n-1]
		d.Stats.MT = meanFinite(sT)
		d.Stats.CIT = 0.5 * (ci[1] - ci[0])
		d.Stats.RUStarVsT = r
		d.Stats.PUStarVsT = p
	}
	return two, three
}

// seasonWindows splits n ordered records into nSeasons contiguous
// [start, end) windows of nearly equal size. The first and last windows
// absorb the remainder.
func seasonWindows(n, nSeasons int) [][2]int {
	size := n / nSeasons
	rem := n - size*nSeasons
	extraFirst := (rem + 1) / 2
	windows := make([][2]int, nSeasons)
	start := 0
	for i := range windows {
		w := size
		if i == 0 {
			w += extraFirst
		}
		if i == nSeasons-1 {
			w += rem - extraFirst
		}
		windows[i] = [2]int{start, start + w}
		start += w
	}
	return windows
}

// decemberFirst returns a record order with December moved ahead of January
// and the matching day-of-year values, December's shifted to end at 0.
func decemberFirst(t []float64, year int) ([]int, []float64) {
	days := daysInYear(t, year)
	decStart := float64(days - 30)
	order := make([]int, 0, len(t))
	for i, v := range t {
		if v >= decStart {
			order = append(order, i)
		}
	}
	for i, v := range t {
		if !(v >= decStart) {
			order = append(order, i)
		}
	}
	shifted := make([]float64, len(order))
	for j, i := range order {
		shifted[j] = t[i]
		if t[i] >= decStart {
			shifted[j] -= float64(days + 1)
		}
	}
	return order, shifted
}

// daysInYear uses the calendar year when known and otherwise treats any
// day of year past 366.0 as evidence of a leap year.
func daysInYear(t []float64, year int) int {
	if year > 0 {
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 366
		}
		return 365
	}
	for _, v := range t {
		if v > 366.001 {
			return 366
		}
	}
	return 365
}

// isHourly reports whether the series has about 24 records per day.
func isHourly(t []float64) bool {
	f := finite(t)
	if len(f) < 2 {
		return false
	}
	lo, hi := f[0], f[0]
	for _, v := range f {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi <= lo {
		return false
	}
	perDay := float64(len(f)) / (hi - lo)
	return perDay < 36
}
