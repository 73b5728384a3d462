package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/chrissnell/ustarthreshold/internal/storage"
)

// Report collects the outcome of one batch run. A site that fails at any
// stage is recorded and the run moves on to the next site.
type Report struct {
	RunID    uuid.UUID `json:"run_id"`
	Results  []Summary `json:"results"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure is one problem met while processing a site
type Failure struct {
	Site  string `json:"site"`
	Year  int    `json:"year,omitempty"`
	Stage string `json:"stage"`
	Err   string `json:"error"`
}

func (f Failure) String() string {
	if f.Year != 0 {
		return fmt.Sprintf("%s %d: %s: %s", f.Site, f.Year, f.Stage, f.Err)
	}
	return fmt.Sprintf("%s: %s: %s", f.Site, f.Stage, f.Err)
}

// Summary is the printable part of a stored record. Values that could not
// be estimated are null.
type Summary struct {
	Site        string   `json:"site"`
	Year        int      `json:"year,omitempty"`
	Model       string   `json:"model"`
	Mode        string   `json:"mode,omitempty"`
	Threshold   *float64 `json:"threshold"`
	ThresholdLo *float64 `json:"threshold_lo"`
	ThresholdHi *float64 `json:"threshold_hi"`
	FracSig     *float64 `json:"frac_sig"`
	FracModeD   *float64 `json:"frac_mode_d"`
	FracSelect  *float64 `json:"frac_select"`
	Failure     string   `json:"failure,omitempty"`
}

func newSummary(r storage.Record) Summary {
	return Summary{
		Site:        r.Site,
		Year:        r.Year,
		Model:       r.Model,
		Mode:        r.Mode,
		Threshold:   optional(r.Threshold),
		ThresholdLo: optional(r.ThresholdLo),
		ThresholdHi: optional(r.ThresholdHi),
		FracSig:     optional(r.FracSig),
		FracModeD:   optional(r.FracModeD),
		FracSelect:  optional(r.FracSelect),
		Failure:     r.Failure,
	}
}

// Failed reports whether anything went wrong during the run
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

func (r *Report) fail(site string, year int, stage string, err error) {
	r.Failures = append(r.Failures, Failure{Site: site, Year: year, Stage: stage, Err: err.Error()})
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d results, %d failures\n", r.RunID, len(r.Results), len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	return b.String()
}

func optional(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
