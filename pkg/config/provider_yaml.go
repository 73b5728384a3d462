package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file. Unknown keys
// are rejected so that misspelled parameters do not silently fall back to
// their defaults.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var config ConfigData
	dec := yaml.NewDecoder(bytes.NewReader(cfgFile))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	y.config = &config
	return y.config, nil
}

// GetAnalysis returns the analysis parameters
func (y *YAMLProvider) GetAnalysis() (*AnalysisData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Analysis, nil
}

// GetSites returns the site list
func (y *YAMLProvider) GetSites() ([]SiteData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Sites, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// IsReadOnly returns true since YAML files are treated as read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
