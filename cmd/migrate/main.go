package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/ustarthreshold/internal/log"
	"github.com/chrissnell/ustarthreshold/internal/storage/sqlite"
	"github.com/chrissnell/ustarthreshold/pkg/config"
	"github.com/chrissnell/ustarthreshold/pkg/migrate"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		schema  = flags.String("schema", "results", "Embedded schema to manage: results, config")
		dbPath  = flags.String("db", "", "Path to the SQLite database")
		command = flags.String("command", "status", "Migration command: up, down, version, status")
		target  = flags.Int("target", -1, "Target version for the down command")
		debug   = flags.Bool("debug", false, "Turn on debugging output")
	)
	flags.Usage = func() { showHelp(stderr) }
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *dbPath == "" {
		fmt.Fprintln(stderr, "Error: -db flag is required")
		showHelp(stderr)
		return 2
	}

	var provider *migrate.FSProvider
	switch *schema {
	case "results":
		provider = sqlite.MigrationProvider()
	case "config":
		provider = config.MigrationProvider()
	default:
		fmt.Fprintf(stderr, "Unknown schema: %s\n", *schema)
		return 2
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		return 1
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Errorf("Failed to ping database: %v", err)
		return 1
	}

	migrator := migrate.NewMigrator(db, provider, log.Named("migrate"))

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down":
		if *target < 0 {
			fmt.Fprintln(stderr, "Error: -target flag is required for down command")
			return 2
		}
		err = migrator.MigrateDown(ctx, *target)
	case "version":
		var version int
		if version, err = migrator.GetCurrentVersion(ctx); err == nil {
			fmt.Fprintf(stdout, "Current version: %d\n", version)
		}
	case "status":
		err = showStatus(ctx, stdout, migrator)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", *command)
		showHelp(stderr)
		return 2
	}

	if err != nil {
		log.Errorf("Migration command failed: %v", err)
		return 1
	}
	if *command == "up" || *command == "down" {
		fmt.Fprintln(stdout, "Migration completed successfully")
	}
	return 0
}

func showStatus(ctx context.Context, w io.Writer, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Fprintf(w, "Current version: %d\n", currentVersion)
	fmt.Fprintf(w, "Pending migrations: %d\n", len(pending))
	if len(pending) > 0 {
		fmt.Fprintln(w, "\nPending migrations:")
		for _, migration := range pending {
			fmt.Fprintf(w, "  %d: %s\n", migration.Version, migration.Name)
		}
	}
	return nil
}

func showHelp(w io.Writer) {
	fmt.Fprintln(w, "Schema Migration Tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  migrate -db <path> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -schema string     results (threshold table) or config (default: results)")
	fmt.Fprintln(w, "  -db string         SQLite database path (required)")
	fmt.Fprintln(w, "  -command string    Migration command (default: status)")
	fmt.Fprintln(w, "  -target int        Target version for down")
	fmt.Fprintln(w, "  -debug             Turn on debugging output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  up                 Apply all pending migrations")
	fmt.Fprintln(w, "  down               Roll back to target version")
	fmt.Fprintln(w, "  version            Show current migration version")
	fmt.Fprintln(w, "  status             Show current version and pending migrations")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  migrate -db results.db -command up")
	fmt.Fprintln(w, "  migrate -db results.db -command down -target 0")
	fmt.Fprintln(w, "  migrate -schema config -db config.db -command status")
}
