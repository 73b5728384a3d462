package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
analysis:
  n_boot: 20
  seed: 7
  workers: 2
sites:
  - name: US-Ha1
    year: 2005
    input: data/US-Ha1_2005.csv
    latitude: 42.54
    longitude: -72.17
    utc_offset: -5
  - name: DE-Tha
    input: data/DE-Tha.csv
    sentinel: -6999
storage:
  sqlite:
    path: results.db
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestYAMLProviderLoad(t *testing.T) {
	p := NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML))

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Analysis.NBoot)
	assert.Equal(t, uint64(7), cfg.Analysis.Seed)
	assert.Equal(t, 4, cfg.Analysis.NSeasons)
	assert.Equal(t, 8, cfg.Analysis.NStrataMax)
	assert.Equal(t, 0.05, cfg.Analysis.PSignificant)
	assert.Equal(t, 3.0, cfg.Analysis.UStarMax)

	require.Len(t, cfg.Sites, 2)
	assert.Equal(t, "US-Ha1", cfg.Sites[0].Name)
	assert.Equal(t, -5.0, cfg.Sites[0].UTCOffset)
	assert.Equal(t, DefaultSentinel, cfg.Sites[0].Sentinel)
	assert.Equal(t, -6999.0, cfg.Sites[1].Sentinel)

	require.NotNil(t, cfg.Storage.SQLite)
	assert.Equal(t, "results.db", cfg.Storage.SQLite.Path)
	assert.Nil(t, cfg.Storage.TimescaleDB)
	assert.True(t, p.IsReadOnly())
}

func TestYAMLProviderRejectsUnknownKeys(t *testing.T) {
	p := NewYAMLProvider(writeFile(t, "config.yaml", "analysis:\n  n_bootstraps: 5\nsites: []\n"))

	_, err := p.LoadConfig()
	assert.Error(t, err)
}

func TestYAMLProviderMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml")).LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *ConfigData {
		c := &ConfigData{Sites: []SiteData{{Name: "a", Input: "a.csv"}}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *ConfigData)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *ConfigData) {}},
		{
			name:    "no sites",
			mutate:  func(c *ConfigData) { c.Sites = nil },
			wantErr: "sites is required",
		},
		{
			name:    "strata bounds inverted",
			mutate:  func(c *ConfigData) { c.Analysis.NStrataMin, c.Analysis.NStrataMax = 6, 5 },
			wantErr: "analysis.n_strata_max",
		},
		{
			name:    "significance out of range",
			mutate:  func(c *ConfigData) { c.Analysis.PSignificant = 1.5 },
			wantErr: "analysis.p_significant",
		},
		{
			name:    "too few bins",
			mutate:  func(c *ConfigData) { c.Analysis.NBins = 5 },
			wantErr: "analysis.n_bins",
		},
		{
			name:    "site without input",
			mutate:  func(c *ConfigData) { c.Sites[0].Input = "" },
			wantErr: "sites[0].input is required",
		},
		{
			name:    "latitude out of range",
			mutate:  func(c *ConfigData) { c.Sites[0].Latitude = 91 },
			wantErr: "sites[0].latitude",
		},
		{
			name:    "empty timescaledb connection",
			mutate:  func(c *ConfigData) { c.Storage.TimescaleDB = &TimescaleDBData{} },
			wantErr: "storage.timescaledb.connection_string is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToUStar(t *testing.T) {
	c := &ConfigData{}
	c.ApplyDefaults()
	c.Analysis.Workers = 3
	c.Analysis.NPerBin = 6

	u := c.Analysis.ToUStar()

	assert.Equal(t, 3, u.Workers)
	assert.Equal(t, 6, u.NPerBin)
	assert.Equal(t, 50, u.NBins)
	assert.Equal(t, 0.05, u.PSignificant)
	assert.Nil(t, u.Logger)

	c.Analysis.Workers = 0
	assert.Positive(t, c.Analysis.ToUStar().Workers)
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	src, err := Load(NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML)))
	require.NoError(t, err)
	src.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: "postgres://localhost/ustar"}

	dbPath := filepath.Join(t.TempDir(), "config.db")
	p, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	require.NoError(t, p.SaveConfig(src))
	require.NoError(t, p.Close())

	// Reopening runs the migrations again as a no-op
	p, err = NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	defer p.Close()

	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, src.Analysis, got.Analysis)
	assert.ElementsMatch(t, src.Sites, got.Sites)
	assert.Equal(t, src.Storage, got.Storage)
	assert.False(t, p.IsReadOnly())

	// Saving again replaces rather than appends
	require.NoError(t, p.SaveConfig(src))
	sites, err := p.GetSites()
	require.NoError(t, err)
	assert.Len(t, sites, 2)
}

func TestSQLiteProviderEmptyDatabase(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer p.Close()

	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Sites)
	assert.Zero(t, cfg.Analysis.NBins)

	_, err = Load(p)
	assert.Error(t, err)
}
