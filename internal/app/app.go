// Package app runs the threshold analysis for every configured site and
// hands the results to the storage backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/ustarthreshold/internal/input"
	"github.com/chrissnell/ustarthreshold/internal/log"
	"github.com/chrissnell/ustarthreshold/internal/managers"
	"github.com/chrissnell/ustarthreshold/internal/storage"
	"github.com/chrissnell/ustarthreshold/internal/ustar"
	"github.com/chrissnell/ustarthreshold/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run processes every site in the configuration. Per-site problems go into
// the returned Report; an error is returned only when the run could not
// start or was interrupted.
func (a *App) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			a.logger.Info("shutdown signal received, cancelling run...")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := config.Load(a.configProvider)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	sm, err := managers.NewStorageManager(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sm.Close(); err != nil {
			a.logger.Errorw("error closing storage", "error", err)
		}
	}()

	ucfg := cfg.Analysis.ToUStar()
	ucfg.Logger = log.Named("ustar")

	report := &Report{RunID: uuid.New()}
	a.logger.Infow("starting threshold run", "run_id", report.RunID, "sites", len(cfg.Sites), "n_boot", cfg.Analysis.NBoot)

	for _, site := range cfg.Sites {
		if err := a.processSite(ctx, site, cfg.Analysis.NBoot, ucfg, sm, report); err != nil {
			return report, err
		}
	}

	a.logger.Infow("threshold run complete", "run_id", report.RunID, "results", len(report.Results), "failures", len(report.Failures))
	return report, nil
}

// processSite runs one site-year end to end. Only cancellation is returned
// as an error; everything else lands in the report.
func (a *App) processSite(ctx context.Context, site config.SiteData, nBoot int, cfg ustar.Config, store storage.ResultStore, report *Report) error {
	siteLog := a.logger.With("site", site.Name)

	series, err := input.Load(site.Input, input.Options{
		Sentinel:  site.Sentinel,
		Year:      site.Year,
		Latitude:  site.Latitude,
		Longitude: site.Longitude,
		UTCOffset: site.UTCOffset,
	})
	if err != nil {
		siteLog.Errorw("failed to load input", "input", site.Input, "error", err)
		report.fail(site.Name, site.Year, "load", err)
		return nil
	}
	siteLog.Infow("loaded site-year", "records", series.Len(), "year", series.Year)

	res, err := ustar.Bootstrap(ctx, series, nBoot, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.fail(site.Name, series.Year, "bootstrap", err)
			return err
		}
		siteLog.Errorw("bootstrap failed", "error", err)
		report.fail(site.Name, series.Year, "bootstrap", err)
		return nil
	}

	for _, m := range ustar.Models {
		sum := ustar.AssignThreshold(res.Stats(m), cfg)
		rec := storage.NewRecord(report.RunID, site.Name, series.Year, nBoot, sum)
		rec.Model = m.String()
		if sum.Failure != "" {
			siteLog.Warnw("no threshold estimate", "model", rec.Model, "reason", sum.Failure)
			report.fail(site.Name, series.Year, rec.Model, errors.New(sum.Failure))
		} else {
			siteLog.Infow("threshold estimated", "model", rec.Model, "mode", rec.Mode,
				"threshold", rec.Threshold, "lo", rec.ThresholdLo, "hi", rec.ThresholdHi)
		}

		if err := store.SaveSummary(ctx, rec); err != nil {
			report.fail(site.Name, series.Year, "store", err)
		}
		report.Results = append(report.Results, newSummary(rec))
	}
	return nil
}

// Show rebuilds the report of an earlier run from the configured storage.
// Only aggregation failures are stored, so load and store failures of the
// original run do not reappear.
func (a *App) Show(ctx context.Context, runID uuid.UUID) (*Report, error) {
	cfg, err := config.Load(a.configProvider)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	sm, err := managers.NewStorageManager(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sm.Close(); err != nil {
			a.logger.Errorw("error closing storage", "error", err)
		}
	}()

	records, err := sm.Records(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}

	report := &Report{RunID: runID}
	for _, r := range records {
		report.Results = append(report.Results, newSummary(r))
		if r.Failure != "" {
			report.fail(r.Site, r.Year, r.Model, errors.New(r.Failure))
		}
	}
	return report, nil
}
