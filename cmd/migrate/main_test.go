package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMigrate(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	return stdout.String()
}

func TestResultsSchemaLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "results.db")

	out := runMigrate(t, "-db", db, "-command", "status")
	assert.Contains(t, out, "Current version: 0")
	assert.Contains(t, out, "Pending migrations: 1")
	assert.Contains(t, out, "1: create ustar threshold")

	runMigrate(t, "-db", db, "-command", "up")
	assert.Contains(t, runMigrate(t, "-db", db, "-command", "version"), "Current version: 1")
	assert.Contains(t, runMigrate(t, "-db", db, "-command", "status"), "Pending migrations: 0")

	runMigrate(t, "-db", db, "-command", "down", "-target", "0")
	assert.Contains(t, runMigrate(t, "-db", db, "-command", "version"), "Current version: 0")
}

func TestConfigSchemaIsTrackedSeparately(t *testing.T) {
	db := filepath.Join(t.TempDir(), "shared.db")

	runMigrate(t, "-schema", "config", "-db", db, "-command", "up")
	assert.Contains(t, runMigrate(t, "-schema", "config", "-db", db, "-command", "version"), "Current version: 1")
	assert.Contains(t, runMigrate(t, "-db", db, "-command", "version"), "Current version: 0")
}

func TestRunRejectsBadArguments(t *testing.T) {
	db := filepath.Join(t.TempDir(), "results.db")
	tests := []struct {
		name string
		args []string
	}{
		{"missing db", []string{"-command", "up"}},
		{"unknown schema", []string{"-schema", "weather", "-db", db}},
		{"unknown command", []string{"-db", db, "-command", "to"}},
		{"down without target", []string{"-db", db, "-command", "down"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 2, run(tt.args, &stdout, &stderr))
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestDownPastCurrentVersionFails(t *testing.T) {
	db := filepath.Join(t.TempDir(), "results.db")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-db", db, "-command", "down", "-target", "0"}, &stdout, &stderr))
}
