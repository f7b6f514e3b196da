package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/analysis"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/config"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/ingest"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/output"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/vertical"
)

// ColRangeSSP is the sound speed implied by the mean baseline length.
const ColRangeSSP = "ssp_bsl"

type statsFlags struct {
	span      string
	logPeriod time.Duration
	columns   []string
	factors   []float64
	reference string
	pairs     []string
}

func newStatsCmd(a *app) *cobra.Command {
	var f statsFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Moving statistics and fractional change of the pair tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.stats(f)
		},
	}
	cmd.Flags().StringVar(&f.span, "span", "P1D", "ISO-8601 moving window")
	cmd.Flags().DurationVar(&f.logPeriod, "period", time.Hour, "logging period of the range events")
	cmd.Flags().StringSliceVar(&f.columns, "columns", []string{models.ColBSL, models.ColBSLHRT, models.ColBSLTPR}, "columns to analyse")
	cmd.Flags().Float64SliceVar(&f.factors, "factors", nil, "per-column scale of diff/rel columns, e.g. 1000 for mm")
	cmd.Flags().StringVar(&f.reference, "reference", "first", "fractional change reference: first, median, mean or a column name")
	cmd.Flags().StringSliceVar(&f.pairs, "pair", nil, "restrict to pairs such as 2201-2202")
	return cmd
}

func (a *app) stats(f statsFlags) error {
	cfg := a.cfg
	dir := cfg.OutputDir()

	span, err := vertical.ParseWindow(f.span)
	if err != nil {
		return fmt.Errorf("invalid --span: %w", err)
	}
	ref := analysis.ParseReference(f.reference)

	files, err := pairTables(dir, f.pairs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no pair tables in %s", dir)
	}

	tables := make([]*models.Table, 0, len(files))
	for _, path := range files {
		tbl, err := ingest.ReadPairTable(path)
		if err != nil {
			return err
		}
		tables = append(tables, tbl.Between(cfg.Start, cfg.End))
	}

	withStats, err := analysis.DiffRel(tables, span, f.logPeriod, f.columns, f.factors)
	if err != nil {
		return err
	}

	writer := output.NewWriter(dir)
	for _, tbl := range withStats {
		pair := models.Pair{A: tbl.ID, B: tbl.RangeID}

		if ssp, err := analysis.RangeSoundSpeed(tbl, pair); err == nil && ssp.Len() == tbl.Len() {
			values := make([]*float64, ssp.Len())
			for i, smp := range ssp.Samples {
				values[i] = smp.Value
			}
			if err := tbl.Set(ColRangeSSP, values); err != nil {
				return err
			}
		}

		fc, err := analysis.FractionalChange(tbl, f.columns, ref)
		if err != nil {
			return fmt.Errorf("pair %s: %w", pair, err)
		}
		path, err := writer.WriteTableFile(pair.String()+"-STAT.dat", fc)
		if err != nil {
			return err
		}
		a.logger.Info("statistics written", "pair", pair.String(), "rows", fc.Len(), "reference", ref.String(), "file", filepath.Base(path))
	}
	return nil
}

func newReplaceCmd(a *app) *cobra.Command {
	var station, neighbour, sensor, from, suffix string

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace a broken sensor record with a neighbouring station's record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := config.ParseTime(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			return a.replace(station, neighbour, strings.ToLower(sensor), start, suffix)
		},
	}
	cmd.Flags().StringVar(&station, "station", "", "station with the broken sensor")
	cmd.Flags().StringVar(&neighbour, "neighbour", "", "station whose record replaces it")
	cmd.Flags().StringVar(&sensor, "channel", models.SensorPRS, "channel to replace, e.g. prs or hrt")
	cmd.Flags().StringVar(&from, "from", "", "first broken timestamp (default: whole record)")
	cmd.Flags().StringVar(&suffix, "suffix", "rep", "suffix of the written file")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("neighbour")
	return cmd
}

// channelFile maps a channel to the sensor file it is stored in.
func channelFile(channel string) string {
	switch channel {
	case models.SensorTPR:
		return "PRS"
	case models.SensorVLT:
		return "BAT"
	case models.SensorPitch, models.SensorRoll:
		return "INC"
	default:
		return strings.ToUpper(channel)
	}
}

func (a *app) replace(station, neighbour, channel string, start time.Time, suffix string) error {
	dir := a.cfg.OutputDir()

	broken, err := ingest.LoadStation(dir, station, "")
	if err != nil {
		return err
	}
	good, err := ingest.LoadStation(dir, neighbour, "")
	if err != nil {
		return err
	}

	repl, err := analysis.Replace(broken.Sensor(channel), good.Sensor(channel), start)
	if err != nil {
		return fmt.Errorf("replace %s of %s: %w", channel, station, err)
	}

	writer := output.NewWriter(dir)
	d := ingest.DatFile{ID: station, Sensor: channelFile(channel), Suffix: suffix}
	path, err := writer.WriteChannels(d, []*series.Series{repl})
	if err != nil {
		return err
	}
	a.logger.Info("sensor record replaced", "station", station, "neighbour", neighbour, "channel", channel, "file", filepath.Base(path))
	return nil
}
