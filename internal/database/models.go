package database

import (
	"time"
)

// ThresholdRow is one model family's result for one site-year. Float columns
// are nullable; a nil pointer stands for a value that could not be estimated.
type ThresholdRow struct {
	CreatedAt time.Time `gorm:"column:created_at;primaryKey"`
	RunID     string    `gorm:"column:run_id;type:uuid;primaryKey"`
	Site      string    `gorm:"column:site;primaryKey"`
	Year      int       `gorm:"column:year;primaryKey"`
	Model     string    `gorm:"column:model;primaryKey"`
	Mode      string    `gorm:"column:mode"`
	NBoot     int       `gorm:"column:n_boot;not null"`

	Threshold   *float64 `gorm:"column:threshold"`
	ThresholdLo *float64 `gorm:"column:threshold_lo"`
	ThresholdHi *float64 `gorm:"column:threshold_hi"`

	SineOffset    *float64 `gorm:"column:sine_offset"`
	SineAmplitude *float64 `gorm:"column:sine_amplitude"`
	SinePhase     *float64 `gorm:"column:sine_phase"`

	FracSig    *float64 `gorm:"column:frac_sig"`
	FracModeD  *float64 `gorm:"column:frac_mode_d"`
	FracSelect *float64 `gorm:"column:frac_select"`

	Failure string `gorm:"column:failure"`
	Vectors []byte `gorm:"column:vectors;type:bytea"`
}

// TableName specifies the table name for ThresholdRow
func (ThresholdRow) TableName() string {
	return "ustar_threshold"
}
