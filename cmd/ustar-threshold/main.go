package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/chrissnell/ustarthreshold/internal/app"
	"github.com/chrissnell/ustarthreshold/internal/constants"
	"github.com/chrissnell/ustarthreshold/internal/log"
	"github.com/chrissnell/ustarthreshold/pkg/config"
	"github.com/chrissnell/ustarthreshold/pkg/responseformat"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so that deferred cleanup happens
// before main exits.
func run() int {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	format := flag.String("format", "json", "Report format written to stdout: 'json' or 'msgpack'")
	showRun := flag.String("show-run", "", "Print the stored report of an earlier run ID instead of running the analysis")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ustar-threshold %s\n", constants.Version)
		return 0
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	formatter, err := responseformat.NewFormatter(*format)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	var runID uuid.UUID
	if *showRun != "" {
		if runID, err = uuid.Parse(*showRun); err != nil {
			log.Errorf("Invalid run ID %q: %v", *showRun, err)
			return 1
		}
	}

	provider, err := newProvider(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to open configuration: %v", err)
		return 1
	}
	defer provider.Close()

	application := app.New(provider, log.Named("app"))
	var report *app.Report
	if *showRun != "" {
		report, err = application.Show(context.Background(), runID)
	} else {
		report, err = application.Run(context.Background())
	}
	if report != nil {
		if werr := formatter.Write(os.Stdout, report); werr != nil {
			log.Errorf("Failed to write report: %v", werr)
		}
	}
	if err != nil {
		log.Errorf("Application error: %v", err)
		return 1
	}
	if report.Failed() && *showRun == "" {
		fmt.Fprint(os.Stderr, report)
		return 1
	}
	return 0
}

func newProvider(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
}
