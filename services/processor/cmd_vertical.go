package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/ingest"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/output"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/vertical"
)

func newVerticalCmd(a *app) *cobra.Command {
	var window, tidePath string

	cmd := &cobra.Command{
		Use:   "vertical",
		Short: "Relative vertical motion between stations from their pressure records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if window != "" {
				w, err := vertical.ParseWindow(window)
				if err != nil {
					return err
				}
				a.cfg.VerticalWindow = w
			}
			return a.vertical(tidePath)
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "ISO-8601 median window such as P7D (GEOSEA_VERTICAL_WINDOW)")
	cmd.Flags().StringVar(&tidePath, "tide", "", "tide model file: a date column followed by the tide height")
	return cmd
}

// pressureStations lists stations with an unsuffixed PRS file in dir.
func pressureStations(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*-PRS.dat"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(files))
	for _, path := range files {
		d, err := ingest.ParseDatName(path)
		if err != nil || d.Suffix != "" {
			continue
		}
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func loadTide(path string) (*series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fr, err := ingest.ReadFrame(f)
	if err != nil {
		return nil, fmt.Errorf("read tide %s: %w", path, err)
	}
	for _, col := range fr.Order {
		values, ok := fr.Numeric[col]
		if !ok {
			continue
		}
		samples := make([]series.Sample, len(values))
		for i, v := range values {
			samples[i] = series.Sample{TS: fr.Index[i], Value: v}
		}
		return series.New("tide", samples), nil
	}
	return nil, fmt.Errorf("tide %s has no numeric column", path)
}

func (a *app) vertical(tidePath string) error {
	cfg := a.cfg
	dir := cfg.OutputDir()

	ids, err := pressureStations(dir)
	if err != nil {
		return err
	}
	if len(ids) < 2 {
		return fmt.Errorf("need pressure records of at least two stations in %s, found %d", dir, len(ids))
	}

	pressures := make(map[string]*series.Series, len(ids))
	for _, id := range ids {
		st, err := ingest.LoadStation(dir, id, "")
		if err != nil {
			return err
		}
		prs := st.Sensor(models.SensorPRS)
		if prs.Empty() {
			a.logger.Warn("station has no pressure samples", "station", id)
			continue
		}
		pressures[id] = prs.Between(cfg.Start, cfg.End)
	}

	var tide *series.Series
	if tidePath != "" {
		if tide, err = loadTide(tidePath); err != nil {
			return err
		}
	}

	diffs, err := vertical.Differences(pressures, tide, cfg.VerticalWindow)
	if err != nil {
		return err
	}

	writer := output.NewWriter(dir)
	for _, d := range diffs {
		files, err := writer.WriteVertical(d)
		if err != nil {
			return err
		}
		a.logger.Info("vertical offset", "pair", d.Pair.String(), "offset_cm", d.OffsetCM, "windows", d.Median.Len(), "files", files)
	}

	printVerticalSummary(os.Stdout, diffs)
	return nil
}
