// Package ingest reads raw beacon logs and persisted sensor files into
// station records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/telemetry"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
)

// HeaderLines is the number of preamble lines of a raw log file.
const HeaderLines = 13

// Raw record types.
const (
	RecordBSL = "BSL"
	RecordSSP = "SSP"
	RecordHRT = "HRT"
	RecordSVT = "SVT"
	RecordTMP = "TMP"
	RecordPRS = "PRS"
	RecordPAG = "PAG"
	RecordBAT = "BAT"
	RecordINC = "INC"
)

// Raw log columns after the record type (A) and date (B).
const (
	colDate = 1
	colE    = 4
	colF    = 5
	colG    = 6
	colH    = 7
	numCols = 10
)

// ErrNoStations is returned when a directory holds no raw logs.
var ErrNoStations = errors.New("no raw data files found")

// Record is one parsed raw log line.
type Record struct {
	Type   string
	TS     time.Time
	Fields [numCols]string
}

// Window bounds ingestion. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) contains(t time.Time) bool {
	return (w.Start.IsZero() || !t.Before(w.Start)) && (w.End.IsZero() || !t.After(w.End))
}

// Reader loads raw beacon logs.
type Reader struct {
	Dir     string
	Window  Window
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

func rawFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "Data_*_*_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// stationOf extracts the station ID, the third underscore separated part of
// a Data_<x>_<ID>_<y>.csv file name.
func stationOf(path string) string {
	parts := strings.SplitN(filepath.Base(path), "_", 4)
	if len(parts) < 4 {
		return ""
	}
	return parts[2]
}

// Stations lists the station IDs with raw logs in the directory.
func (r *Reader) Stations() ([]string, error) {
	files, err := rawFiles(r.Dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, f := range files {
		id := stationOf(f)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoStations, r.Dir)
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadAll loads every station found in the directory.
func (r *Reader) ReadAll() ([]*models.Station, error) {
	ids, err := r.Stations()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Station, 0, len(ids))
	for _, id := range ids {
		st, err := r.ReadStation(id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ReadStation merges all raw logs of one station.
func (r *Reader) ReadStation(id string) (*models.Station, error) {
	files, err := rawFiles(r.Dir)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0)
	for _, path := range files {
		if stationOf(path) != id {
			continue
		}
		recs, err := readFile(path)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	records = dedupRecords(records)
	filtered := records[:0]
	for _, rec := range records {
		if r.Window.contains(rec.TS) {
			filtered = append(filtered, rec)
		}
	}

	st := Assemble(id, filtered)
	if r.Logger != nil {
		r.Logger.Info("station ingested", "station", id, "records", len(filtered), "ranges", len(st.Ranges))
	}
	if r.Metrics != nil {
		counts := make(map[string]int)
		for _, rec := range filtered {
			counts[rec.Type]++
		}
		for typ, n := range counts {
			r.Metrics.ObserveIngest(typ, n)
		}
	}
	return st, nil
}

func readFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return recs, nil
}

// Parse reads a raw log: a fixed preamble followed by comma separated lines
// whose first column is the record type and second the timestamp.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	out := make([]Record, 0)
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line <= HeaderLines || len(row) <= colDate {
			continue
		}

		ts, err := dateparse.ParseIn(strings.TrimSpace(row[colDate]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, row[colDate], err)
		}
		rec := Record{Type: strings.TrimSpace(row[0]), TS: ts}
		for i := 0; i < numCols && i < len(row); i++ {
			rec.Fields[i] = strings.TrimSpace(row[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

func dedupRecords(records []Record) []Record {
	seen := make(map[Record]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	return out
}

func field(rec Record, col int) *float64 {
	s := rec.Fields[col]
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}

// stationID renders a numeric station reference as written in file names.
func stationID(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Assemble splits parsed records into a station's range log and sensor
// channels.
func Assemble(id string, records []Record) *models.Station {
	st := models.NewStation(id)
	channels := make(map[string][]series.Sample)
	add := func(name string, ts time.Time, v *float64) {
		channels[name] = append(channels[name], series.Sample{TS: ts, Value: v})
	}

	for _, rec := range records {
		switch rec.Type {
		case RecordBSL:
			rng, tat := field(rec, colG), field(rec, colH)
			if rng == nil {
				continue
			}
			r := models.RangeRecord{TS: rec.TS, RangeID: stationID(rec.Fields[colF]), Range: *rng}
			if tat != nil {
				r.TAT = *tat
			}
			st.Ranges = append(st.Ranges, r)
		case RecordSSP:
			v := field(rec, colE)
			if v != nil && *v == utils.OutOfWaterSSP {
				continue
			}
			add(models.SensorSSP, rec.TS, utils.NormalizeSoundSpeed(v))
		case RecordHRT:
			add(models.SensorHRT, rec.TS, field(rec, colE))
		case RecordSVT:
			add(models.SensorHRT, rec.TS, field(rec, colF))
		case RecordTMP:
			add(models.SensorTMP, rec.TS, field(rec, colE))
		case RecordPRS:
			add(models.SensorPRS, rec.TS, field(rec, colE))
			add(models.SensorTPR, rec.TS, field(rec, colF))
		case RecordPAG:
			add(models.SensorPAG, rec.TS, field(rec, colE))
		case RecordBAT:
			add(models.SensorBAT, rec.TS, field(rec, colE))
			add(models.SensorVLT, rec.TS, field(rec, colF))
		case RecordINC:
			add(models.SensorPitch, rec.TS, degrees(field(rec, colE)))
			add(models.SensorRoll, rec.TS, degrees(field(rec, colF)))
		}
	}

	for name, samples := range channels {
		st.Sensors[name] = series.New(name, samples)
	}
	sort.SliceStable(st.Ranges, func(i, j int) bool { return st.Ranges[i].TS.Before(st.Ranges[j].TS) })
	return st
}

func degrees(rad *float64) *float64 {
	if rad == nil {
		return nil
	}
	return utils.Float(*rad * 180 / math.Pi)
}
