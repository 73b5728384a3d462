// Package config loads the analysis parameters, site list and storage
// backends for threshold runs from YAML files or SQLite databases.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetAnalysis() (*AnalysisData, error)
	GetSites() ([]SiteData, error)
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Analysis AnalysisData `json:"analysis" yaml:"analysis"`
	Sites    []SiteData   `json:"sites" yaml:"sites" validate:"required,min=1,dive"`
	Storage  StorageData  `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// AnalysisData holds the stratification, significance and bootstrap
// parameters shared by every site.
type AnalysisData struct {
	NSeasons      int     `json:"n_seasons" yaml:"n_seasons" validate:"gte=1"`
	NStrataMin    int     `json:"n_strata_min" yaml:"n_strata_min" validate:"gte=1"`
	NStrataMax    int     `json:"n_strata_max" yaml:"n_strata_max" validate:"gtefield=NStrataMin"`
	NBins         int     `json:"n_bins" yaml:"n_bins" validate:"gte=10"`
	NPerBin       int     `json:"n_per_bin" yaml:"n_per_bin" validate:"gte=1"`
	NPerBinHourly int     `json:"n_per_bin_hourly" yaml:"n_per_bin_hourly" validate:"gte=1"`
	PSignificant  float64 `json:"p_significant" yaml:"p_significant" validate:"gt=0,lt=1"`
	NBoot         int     `json:"n_boot" yaml:"n_boot" validate:"gte=1"`
	Seed          uint64  `json:"seed" yaml:"seed"`
	Workers       int     `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0"`
	UStarMin      float64 `json:"ustar_min" yaml:"ustar_min" validate:"gte=0"`
	UStarMax      float64 `json:"ustar_max" yaml:"ustar_max" validate:"gtfield=UStarMin"`
}

// SiteData describes one site-year input file
type SiteData struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Year  int    `json:"year,omitempty" yaml:"year,omitempty" validate:"omitempty,gte=1900,lte=2200"`
	Input string `json:"input" yaml:"input" validate:"required"`

	// Location is used to derive the night flag when the input has none.
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
	UTCOffset float64 `json:"utc_offset,omitempty" yaml:"utc_offset,omitempty" validate:"gte=-12,lte=14"`

	// Sentinel marks missing values in the input file.
	Sentinel float64 `json:"sentinel,omitempty" yaml:"sentinel,omitempty"`
}

// StorageData holds the configuration for the result storage backends
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path" validate:"required"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string" validate:"required"`
}
