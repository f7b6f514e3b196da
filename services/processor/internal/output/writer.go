// Package output writes pair tables, station channels and run manifests to
// the data directory.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/ingest"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/vertical"
)

// sensorFiles groups station channels into the per-sensor files they are
// persisted in.
var sensorFiles = []struct {
	sensor   string
	channels []string
}{
	{sensor: "SSP", channels: []string{models.SensorSSP, models.SensorSSPW, models.SensorSSPD}},
	{sensor: "HRT", channels: []string{models.SensorHRT}},
	{sensor: "TMP", channels: []string{models.SensorTMP}},
	{sensor: "PRS", channels: []string{models.SensorPRS, models.SensorTPR}},
	{sensor: "SAL", channels: []string{models.SensorSAL}},
	{sensor: "PAG", channels: []string{models.SensorPAG}},
	{sensor: "BAT", channels: []string{models.SensorBAT, models.SensorVLT}},
	{sensor: "INC", channels: []string{models.SensorPitch, models.SensorRoll}},
}

// Writer persists artifacts below Dir.
type Writer struct {
	Dir       string
	Delimiter rune
}

// NewWriter returns a tab-delimited writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Delimiter: '\t'}
}

func (w *Writer) delim() string {
	if w.Delimiter == 0 {
		return "\t"
	}
	return string(w.Delimiter)
}

// create writes a file atomically through a temporary sibling.
func (w *Writer) create(name string, fill func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, name)
	tmp, err := os.CreateTemp(w.Dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTable writes a pair table with a header row. ID and range_ID are
// written as text, missing values as NaN.
func WriteTable(out io.Writer, tbl *models.Table, delim string) error {
	cols := tbl.Columns()
	if _, err := fmt.Fprintf(out, "date%s%s\n", delim, strings.Join(cols, delim)); err != nil {
		return err
	}

	row := make([]string, len(cols)+1)
	for i, ts := range tbl.Index {
		row[0] = ts.UTC().Format(models.DateLayout)
		for j, col := range cols {
			switch col {
			case models.ColID:
				row[j+1] = tbl.ID
			case models.ColRangeID:
				row[j+1] = tbl.RangeID
			default:
				row[j+1] = utils.FormatValue(tbl.Value(col, i))
			}
		}
		if _, err := fmt.Fprintln(out, strings.Join(row, delim)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSeries writes channels side by side on the union of their
// timestamps. Channels lacking a timestamp read NaN there.
func WriteSeries(out io.Writer, channels []*series.Series, delim string, header bool) error {
	stamps := make(map[time.Time]bool)
	lookup := make([]map[time.Time]*float64, len(channels))
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name
		lookup[i] = make(map[time.Time]*float64, ch.Len())
		for _, smp := range ch.Samples {
			stamps[smp.TS] = true
			lookup[i][smp.TS] = smp.Value
		}
	}
	index := make([]time.Time, 0, len(stamps))
	for ts := range stamps {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	if header {
		if _, err := fmt.Fprintf(out, "date%s%s\n", delim, strings.Join(names, delim)); err != nil {
			return err
		}
	}
	row := make([]string, len(channels)+1)
	for _, ts := range index {
		row[0] = ts.UTC().Format(models.DateLayout)
		for i := range channels {
			row[i+1] = utils.FormatValue(lookup[i][ts])
		}
		if _, err := fmt.Fprintln(out, strings.Join(row, delim)); err != nil {
			return err
		}
	}
	return nil
}

// PairFile is the name of a pair's full table file.
func PairFile(p models.Pair) string {
	return p.String() + "-BSL.dat"
}

// WriteTableFile writes tbl to Dir under name.
func (w *Writer) WriteTableFile(name string, tbl *models.Table) (string, error) {
	delim := w.delim()
	return w.create(name, func(out io.Writer) error {
		return WriteTable(out, tbl, delim)
	})
}

// WritePair writes the full <A>-<B>-BSL.dat and the canonical <A>-<B>.dat
// of a processed pair. Pairs without a table write nothing.
func (w *Writer) WritePair(res models.PairResult) ([]string, error) {
	if res.Table == nil {
		return nil, nil
	}
	full, err := w.WriteTableFile(PairFile(res.Pair), res.Table)
	if err != nil {
		return nil, err
	}
	canonical, err := w.WriteTableFile(res.Pair.String()+".dat", res.Canonical())
	if err != nil {
		return nil, err
	}
	return []string{full, canonical}, nil
}

// WriteStation writes the station's channels as <ID>-<SENSOR>.dat files.
func (w *Writer) WriteStation(st *models.Station) ([]string, error) {
	paths := make([]string, 0, len(sensorFiles))
	for _, sf := range sensorFiles {
		channels := make([]*series.Series, 0, len(sf.channels))
		for _, name := range sf.channels {
			if ch := st.Sensor(name); !ch.Empty() {
				channels = append(channels, ch)
			}
		}
		if len(channels) == 0 {
			continue
		}
		path, err := w.WriteChannels(ingest.DatFile{ID: st.ID, Sensor: sf.sensor}, channels)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteChannels writes channels side by side into the named sensor file.
func (w *Writer) WriteChannels(d ingest.DatFile, channels []*series.Series) (string, error) {
	delim := w.delim()
	return w.create(d.Name(), func(out io.Writer) error {
		return WriteSeries(out, channels, delim, true)
	})
}

// WriteVertical writes the windowed median pressure difference of a pair as
// a headerless <A>-<B>-PRS.dat and the unbinned difference beside it as
// <A>-<B>-PRS-raw.dat.
func (w *Writer) WriteVertical(d vertical.Difference) ([]string, error) {
	delim := w.delim()
	paths := make([]string, 0, 2)
	for _, f := range []struct {
		name string
		s    *series.Series
	}{
		{name: d.Pair.String() + "-PRS.dat", s: d.Median},
		{name: d.Pair.String() + "-PRS-raw.dat", s: d.Raw},
	} {
		path, err := w.create(f.name, func(out io.Writer) error {
			return WriteSeries(out, []*series.Series{f.s}, delim, false)
		})
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
