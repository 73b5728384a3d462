package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/ustarthreshold/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	// Validate before writing anything so a bad file never reaches the database.
	configData, err := config.Load(config.NewYAMLProvider(*yamlFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Loaded %d sites\n", len(configData.Sites))

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
		printConfigSummary(configData)
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func printConfigSummary(c *config.ConfigData) {
	a := c.Analysis
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Analysis: %d seasons, %d-%d strata, %d bins, %d bootstrap runs, seed %d\n",
		a.NSeasons, a.NStrataMin, a.NStrataMax, a.NBins, a.NBoot, a.Seed)

	fmt.Printf("\nSites (%d):\n", len(c.Sites))
	for _, s := range c.Sites {
		fmt.Printf("  - %s %d (%s)\n", s.Name, s.Year, s.Input)
	}

	fmt.Printf("\nStorage Backends:\n")
	if c.Storage.SQLite != nil {
		fmt.Printf("  - SQLite: %s\n", c.Storage.SQLite.Path)
	}
	if c.Storage.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB: %s\n", c.Storage.TimescaleDB.ConnectionString)
	}
}
