package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/baseline"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/config"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/db"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/ingest"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/output"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/seawater"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/telemetry"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
)

// app carries what every subcommand needs.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("processor failed: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "geosea",
		Short: "Acoustic baseline processing for seafloor geodesy networks",
		Long: `geosea turns the raw logs of a seafloor beacon network into baseline
lengths between station pairs, constant-baseline estimates, relative vertical
motion from pressure records and moving statistics.

Examples:
  geosea run --raw ../RAW --data ../DATA --latitude 54.3
  geosea estimate --start 2016-03-01 --end 2016-09-01 --intercept
  geosea vertical --window P14D`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}
			a.cfg = cfg

			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			a.metrics = telemetry.NewMetrics()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.String("raw", "", "raw log directory (GEOSEA_RAW_DIR)")
	flags.String("data", "", "data directory (GEOSEA_DATA_DIR)")
	flags.String("project", "", "project name (GEOSEA_PROJECT)")
	flags.Float64("salinity", 0, "constant salinity in PSU (GEOSEA_SALINITY)")
	flags.Float64("latitude", 0, "network latitude in degrees (GEOSEA_LATITUDE)")
	flags.Duration("tolerance", 0, "companion match tolerance (GEOSEA_MATCH_TOLERANCE)")
	flags.Bool("outliers", false, "drop baselines more than 10 m from the pair mean (GEOSEA_OUTLIER_FILTER)")
	flags.Int("workers", 0, "concurrent pairs (GEOSEA_WORKERS)")
	flags.String("start", "", "ignore records before this time (GEOSEA_START)")
	flags.String("end", "", "ignore records after this time (GEOSEA_END)")
	flags.Bool("dry-run", false, "skip database writes (DRY_RUN)")

	root.AddCommand(
		newRunCmd(a),
		newEstimateCmd(a),
		newVerticalCmd(a),
		newStatsCmd(a),
		newReplaceCmd(a),
	)
	return root
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("raw") {
		cfg.RawDir, _ = flags.GetString("raw")
	}
	if flags.Changed("data") {
		cfg.DataDir, _ = flags.GetString("data")
	}
	if flags.Changed("project") {
		name, _ := flags.GetString("project")
		cfg.Project = config.ProjectSlug(name)
	}
	if flags.Changed("salinity") {
		cfg.Salinity, _ = flags.GetFloat64("salinity")
	}
	if flags.Changed("latitude") {
		cfg.Latitude, _ = flags.GetFloat64("latitude")
		cfg.HasLatitude = true
	}
	if flags.Changed("tolerance") {
		cfg.MatchTolerance, _ = flags.GetDuration("tolerance")
	}
	if flags.Changed("outliers") {
		cfg.OutlierFilter, _ = flags.GetBool("outliers")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("start") {
		v, _ := flags.GetString("start")
		if cfg.Start, err = config.ParseTime(v); err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
	}
	if flags.Changed("end") {
		v, _ := flags.GetString("end")
		if cfg.End, err = config.ParseTime(v); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
	}
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type runFlags struct {
	inferSalinity bool
	salinityModel string
	models        []string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest raw logs and compute baselines for every station pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return a.run(ctx, f)
		},
	}
	cmd.Flags().BoolVar(&f.inferSalinity, "infer-salinity", false, "derive a salinity channel from measured sound speed where none is logged")
	cmd.Flags().StringVar(&f.salinityModel, "salinity-model", "wilson", "salinity inversion used by --infer-salinity: wilson or medwin")
	cmd.Flags().StringSliceVar(&f.models, "model", nil, "additional sound speed channels to store with each station: wilson (ssp_w), delgrosso (ssp_d)")
	return cmd
}

func (a *app) run(ctx context.Context, f runFlags) error {
	cfg := a.cfg
	started := time.Now()

	if !cfg.HasLatitude {
		return fmt.Errorf("latitude is required: set GEOSEA_LATITUDE or --latitude")
	}
	salModel, err := seawater.ParseSalinityModel(f.salinityModel)
	if err != nil {
		return err
	}
	speedModels, err := seawater.ParseSpeedModels(f.models)
	if err != nil {
		return err
	}

	reader := &ingest.Reader{
		Dir:     cfg.RawDir,
		Window:  ingest.Window{Start: cfg.Start, End: cfg.End},
		Logger:  a.logger,
		Metrics: a.metrics,
	}
	stations, err := reader.ReadAll()
	if err != nil {
		return err
	}

	writer := output.NewWriter(cfg.OutputDir())
	ids := make([]string, 0, len(stations))
	for _, st := range stations {
		ids = append(ids, st.ID)
		a.prepareStation(st, f.inferSalinity, salModel, speedModels)
		if _, err := writer.WriteStation(st); err != nil {
			return err
		}
	}
	a.logger.Info("stations loaded", "stations", len(stations), "dir", cfg.RawDir)

	proc := baseline.NewProcessor(
		baseline.WithTolerance(cfg.MatchTolerance),
		baseline.WithOutlierFilter(cfg.OutlierFilter),
		baseline.WithWorkers(cfg.Workers),
		baseline.WithLogger(a.logger),
		baseline.WithMetrics(a.metrics),
	)
	results, err := proc.Run(ctx, stations)
	if err != nil {
		return err
	}

	manifest := output.NewManifest(cfg.Project, started)
	manifest.Stations = ids
	manifest.Settings["salinity"] = fmt.Sprint(cfg.Salinity)
	manifest.Settings["latitude"] = fmt.Sprint(cfg.Latitude)
	manifest.Settings["tolerance"] = cfg.MatchTolerance.String()
	manifest.Settings["outlier_filter"] = fmt.Sprint(cfg.OutlierFilter)
	if f.inferSalinity {
		manifest.Settings["salinity_model"] = salModel.String()
	}
	if len(speedModels) > 0 {
		manifest.Settings["models"] = strings.Join(f.models, ",")
	}

	for _, res := range results {
		files, err := writer.WritePair(res)
		if err != nil {
			return err
		}
		manifest.AddPair(res, files)
	}
	manifest.FinishedAt = time.Now().UTC()
	if _, err := writer.WriteManifest(output.ManifestName, manifest); err != nil {
		return err
	}

	if err := a.persist(ctx, manifest, results); err != nil {
		return err
	}
	if err := a.writeMetrics(); err != nil {
		return err
	}

	printPairSummary(os.Stdout, results)
	a.logger.Info("run finished", "run_id", manifest.RunID, "pairs", len(results), "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// prepareStation derives the salinity and sound-speed channels of a station
// before it is persisted and paired.
func (a *app) prepareStation(st *models.Station, inferSalinity bool, salModel seawater.SalinityModel, speedModels []seawater.SpeedModel) {
	cfg := a.cfg
	if inferSalinity && st.Sensor(models.SensorSAL).Empty() {
		in := seawater.Inputs{
			Primary:   st.Sensor(models.SensorHRT),
			Pressure:  st.Sensor(models.SensorPRS),
			Tolerance: cfg.MatchTolerance,
		}
		if sal := seawater.InferSalinity(models.SensorSAL, in, st.Sensor(models.SensorSSP), salModel); !sal.Empty() {
			st.Sensors[models.SensorSAL] = sal
			a.logger.Debug("salinity inferred", "station", st.ID, "model", salModel.String(), "samples", sal.Len())
		}
	}
	sal := seawater.ConstantSalinity(cfg.Salinity)
	seawater.Augment(st, sal, cfg.Latitude, cfg.MatchTolerance)
	seawater.AddModels(st, speedModels, sal, cfg.MatchTolerance)
}

func (a *app) persist(ctx context.Context, m *output.Manifest, results []models.PairResult) error {
	cfg := a.cfg
	if cfg.DatabaseURL == "" {
		return nil
	}

	rows := make([]db.BaselineRow, 0)
	failed := 0
	for _, res := range results {
		rows = append(rows, db.BaselineRows(res)...)
		if res.Err != nil {
			failed++
		}
	}
	if cfg.DryRun {
		for _, res := range results {
			if res.Table == nil || res.Table.Len() == 0 {
				continue
			}
			first, last := res.Table.Value(models.ColBSL, 0), res.Table.Value(models.ColBSL, res.Table.Len()-1)
			a.logger.Info("dry-run: pair not stored", "pair", res.Pair.String(), "events", res.Table.Len(),
				"bsl_first", utils.ValuePtrString(first), "bsl_last", utils.ValuePtrString(last))
		}
		a.logger.Info("dry-run: skipping database writes", "pairs", len(results), "baselines", len(rows))
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
	run := db.RunRow{
		ID:          m.RunID,
		Project:     m.Project,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		Stations:    m.Stations,
		Pairs:       len(results),
		FailedPairs: failed,
	}
	if err := db.UpsertRun(ctx, pool, run); err != nil {
		return err
	}
	if err := db.UpsertPairs(ctx, pool, m.RunID, results); err != nil {
		return err
	}
	if err := db.UpsertBaselines(ctx, pool, m.RunID, rows); err != nil {
		return err
	}
	a.logger.Info("results stored", "run_id", m.RunID, "pairs", len(results), "baselines", len(rows))
	return nil
}

func (a *app) writeMetrics() error {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	return a.metrics.WriteTextfile(a.cfg.MetricsFile)
}
