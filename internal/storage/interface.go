// Package storage defines the result record written after each site-year
// evaluation and the interface storage backends implement.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/ustarthreshold/internal/ustar"
)

// ResultStore is implemented by every result storage backend
type ResultStore interface {
	SaveSummary(ctx context.Context, r Record) error
	Close() error
}

// ResultReader is implemented by backends that can return stored results
type ResultReader interface {
	Records(ctx context.Context, runID uuid.UUID) ([]Record, error)
}

// Record is the flat result row of one model family for one site-year
type Record struct {
	RunID     uuid.UUID
	Site      string
	Year      int
	Model     string
	Mode      string
	NBoot     int
	CreatedAt time.Time

	// Threshold is the median of CpA with its 95% bootstrap interval.
	Threshold   float64
	ThresholdLo float64
	ThresholdHi float64

	CpA []float64
	NA  []int
	TW  []float64
	CpW []float64

	SineOffset    float64
	SineAmplitude float64
	SinePhase     float64

	FracSig    float64
	FracModeD  float64
	FracSelect float64

	Failure string
}

// NewRecord flattens an annual summary into a storage record.
func NewRecord(runID uuid.UUID, site string, year, nBoot int, sum ustar.AnnualSummary) Record {
	lo, mid, hi := sum.Threshold()
	return Record{
		RunID:         runID,
		Site:          site,
		Year:          year,
		Model:         sum.Model.String(),
		Mode:          sum.Mode,
		NBoot:         nBoot,
		CreatedAt:     time.Now().UTC(),
		Threshold:     mid,
		ThresholdLo:   lo,
		ThresholdHi:   hi,
		CpA:           sum.CpA,
		NA:            sum.NA,
		TW:            sum.TW,
		CpW:           sum.CpW,
		SineOffset:    sum.Sine.Offset,
		SineAmplitude: sum.Sine.Amplitude,
		SinePhase:     sum.Sine.Phase,
		FracSig:       sum.FracSig,
		FracModeD:     sum.FracModeD,
		FracSelect:    sum.FracSelect,
		Failure:       sum.Failure,
	}
}
