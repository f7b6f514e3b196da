package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// DatSensors are the sensor names accepted in <ID>-<SENSOR>[-suffix].dat
// file names.
var DatSensors = []string{"SSP", "HRT", "PRS", "PAG", "BAT", "INC", "SVT", "BSL", "SAL", "TMP", "TPR"}

// ErrUnknownSensor is returned for data files naming an unsupported sensor.
var ErrUnknownSensor = errors.New("unknown sensor")

// DatFile names a persisted per-station sensor file.
type DatFile struct {
	ID     string
	Sensor string
	Suffix string
}

// Name renders the file name.
func (d DatFile) Name() string {
	if d.Suffix != "" {
		return fmt.Sprintf("%s-%s-%s.dat", d.ID, d.Sensor, d.Suffix)
	}
	return fmt.Sprintf("%s-%s.dat", d.ID, d.Sensor)
}

// ParseDatName splits <ID>-<SENSOR>[-suffix].dat.
func ParseDatName(name string) (DatFile, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".dat")
	parts := strings.SplitN(base, "-", 3)
	if len(parts) < 2 {
		return DatFile{}, fmt.Errorf("invalid data file name %q", name)
	}
	d := DatFile{ID: parts[0], Sensor: strings.ToUpper(parts[1])}
	if len(parts) == 3 {
		d.Suffix = parts[2]
	}
	for _, s := range DatSensors {
		if s == d.Sensor {
			return d, nil
		}
	}
	return DatFile{}, fmt.Errorf("%w %q in %s", ErrUnknownSensor, parts[1], name)
}

// Frame is a parsed delimited data file: a time index plus named columns.
// Non-numeric columns land in Text.
type Frame struct {
	Index   []time.Time
	Order   []string
	Numeric map[string][]*float64
	Text    map[string][]string
}

// ReadFrame parses a tab separated file with a "date" header column.
func ReadFrame(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 1 {
		return nil, errors.New("empty header")
	}

	fr := &Frame{Numeric: make(map[string][]*float64), Text: make(map[string][]string)}
	cols := header[1:]
	raw := make([][]string, len(cols))
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		ts, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(row[0]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fr.Index = append(fr.Index, ts)
		for j := range cols {
			v := ""
			if j+1 < len(row) {
				v = strings.TrimSpace(row[j+1])
			}
			raw[j] = append(raw[j], v)
		}
	}

	for j, col := range cols {
		col = strings.TrimSpace(col)
		fr.Order = append(fr.Order, col)
		if col == models.ColID || col == models.ColRangeID {
			fr.Text[col] = raw[j]
			continue
		}
		fr.Numeric[col] = parseColumn(raw[j])
	}
	return fr, nil
}

func parseColumn(raw []string) []*float64 {
	out := make([]*float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		out[i] = &v
	}
	return out
}

func readFramePath(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fr, err := ReadFrame(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return fr, nil
}

// LoadStation rebuilds a station's sensor channels from its persisted data
// files. Suffixed files are skipped unless suffix names them.
func LoadStation(dir, id, suffix string) (*models.Station, error) {
	files, err := filepath.Glob(filepath.Join(dir, id+"-*.dat"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	st := models.NewStation(id)
	for _, path := range files {
		d, err := ParseDatName(path)
		if err != nil || d.ID != id || d.Suffix != suffix || d.Sensor == "BSL" {
			continue
		}
		fr, err := readFramePath(path)
		if err != nil {
			return nil, err
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
			st.Sensors[col] = series.New(col, samples)
		}
	}
	return st, nil
}

// ReadPairTable loads a persisted pair table such as <A>-<B>-BSL.dat.
func ReadPairTable(path string) (*models.Table, error) {
	fr, err := readFramePath(path)
	if err != nil {
		return nil, err
	}

	id, rangeID := "", ""
	if ids := fr.Text[models.ColID]; len(ids) > 0 {
		id = ids[0]
	}
	if ids := fr.Text[models.ColRangeID]; len(ids) > 0 {
		rangeID = ids[0]
	}
	if id == "" || rangeID == "" {
		base := strings.TrimSuffix(filepath.Base(path), ".dat")
		parts := strings.SplitN(base, "-", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("cannot determine pair of %s", path)
		}
		id, rangeID = parts[0], parts[1]
	}

	tbl := models.NewTable(id, rangeID, fr.Index)
	for _, col := range fr.Order {
		values, ok := fr.Numeric[col]
		if !ok {
			continue
		}
		if err := tbl.Set(col, values); err != nil {
			return nil, fmt.Errorf("%s column %s: %w", path, col, err)
		}
	}
	return tbl, nil
}
