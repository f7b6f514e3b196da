package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/config"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/db"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/estimate"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/ingest"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/output"
)

type estimateFlags struct {
	intercept  bool
	storeStart string
	storeEnd   string
	pairs      []string
}

func newEstimateCmd(a *app) *cobra.Command {
	var f estimateFlags

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Fit a constant baseline length per pair over the --start/--end window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return a.estimate(ctx, f)
		},
	}
	cmd.Flags().BoolVar(&f.intercept, "intercept", false, "fit a constant travel-time offset as well")
	cmd.Flags().StringVar(&f.storeStart, "store-start", "", "start of the window the result is stored over (default: fit window)")
	cmd.Flags().StringVar(&f.storeEnd, "store-end", "", "end of the window the result is stored over (default: fit window)")
	cmd.Flags().StringSliceVar(&f.pairs, "pair", nil, "restrict to pairs such as 2201-2202")
	return cmd
}

func pairTables(dir string, only []string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*-*-BSL.dat"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if len(only) == 0 {
		return files, nil
	}
	keep := make(map[string]bool, len(only))
	for _, p := range only {
		keep[strings.TrimSpace(p)] = true
	}
	out := files[:0]
	for _, path := range files {
		if keep[strings.TrimSuffix(filepath.Base(path), "-BSL.dat")] {
			out = append(out, path)
		}
	}
	return out, nil
}

func (a *app) estimate(ctx context.Context, f estimateFlags) error {
	cfg := a.cfg
	started := time.Now()
	dir := cfg.OutputDir()

	opts := estimate.Options{
		Intercept: f.intercept,
		Window:    estimate.Window{Start: cfg.Start, End: cfg.End},
	}
	if f.storeStart != "" || f.storeEnd != "" {
		store := opts.Window
		var err error
		if f.storeStart != "" {
			if store.Start, err = config.ParseTime(f.storeStart); err != nil {
				return fmt.Errorf("invalid --store-start: %w", err)
			}
		}
		if f.storeEnd != "" {
			if store.End, err = config.ParseTime(f.storeEnd); err != nil {
				return fmt.Errorf("invalid --store-end: %w", err)
			}
		}
		opts.Store = &store
	}

	files, err := pairTables(dir, f.pairs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no pair tables in %s: run the baseline processing first", dir)
	}

	writer := output.NewWriter(dir)
	manifest := output.NewManifest(cfg.Project, started)
	results := make([]estimate.Result, 0, len(files))
	var failures []error

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tbl, err := ingest.ReadPairTable(path)
		if err != nil {
			a.metrics.ObserveEstimateFailure()
			a.logger.Warn("pair table unreadable", "file", filepath.Base(path), "error", err)
			failures = append(failures, err)
			continue
		}

		res, err := estimate.Estimate(tbl, opts)
		if err != nil {
			a.metrics.ObserveEstimateFailure()
			a.logEstimateFailure(err)
			failures = append(failures, err)
			continue
		}

		pair := models.Pair{A: tbl.ID, B: tbl.RangeID}
		if _, err := writer.WriteTableFile(output.PairFile(pair), tbl); err != nil {
			return err
		}
		manifest.AddEstimate(res)
		results = append(results, res)
		a.logger.Info("constant baseline estimated", "pair", res.Pair, "length", res.Length, "std_dev_tt", res.StdDev, "n", res.N)
	}

	manifest.FinishedAt = time.Now().UTC()
	if _, err := writer.WriteManifest(output.EstimateManifestName, manifest); err != nil {
		return err
	}
	if err := a.persistEstimates(ctx, manifest, results); err != nil {
		return err
	}
	if err := a.writeMetrics(); err != nil {
		return err
	}

	printEstimateSummary(os.Stdout, results, failures)
	return nil
}

func (a *app) logEstimateFailure(err error) {
	var insufficient *estimate.InsufficientDataError
	var fitErr *estimate.FitError
	switch {
	case errors.As(err, &insufficient):
		a.logger.Warn("constant baseline skipped", "pair", insufficient.Pair, "window", insufficient.Window.String(), "n", insufficient.N)
	case errors.As(err, &fitErr):
		a.logger.Warn("constant baseline fit failed", "pair", fitErr.Pair, "window", fitErr.Window.String(), "n", fitErr.N, "error", fitErr.Err)
	default:
		a.logger.Warn("constant baseline failed", "error", err)
	}
}

func (a *app) persistEstimates(ctx context.Context, m *output.Manifest, results []estimate.Result) error {
	cfg := a.cfg
	if cfg.DatabaseURL == "" || len(results) == 0 {
		return nil
	}
	if cfg.DryRun {
		a.logger.Info("dry-run: skipping estimate writes", "estimates", len(results))
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	run := db.RunRow{ID: m.RunID, Project: m.Project, StartedAt: m.StartedAt, FinishedAt: m.FinishedAt, Stations: []string{}}
	if err := db.UpsertRun(ctx, pool, run); err != nil {
		return err
	}
	return db.InsertEstimates(ctx, pool, m.RunID, results)
}
