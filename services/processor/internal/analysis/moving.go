// Package analysis holds the statistics run on processed baselines: moving
// averages, relative changes and fractional change, plus sensor repair.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
)

// ErrInvalidConfig marks caller configuration that cannot be applied.
var ErrInvalidConfig = errors.New("invalid analysis configuration")

// Regular resamples tbl onto a regular grid of step from its first to its
// last timestamp. Grid points without an exact row are missing.
func Regular(tbl *models.Table, step time.Duration) (*models.Table, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive", ErrInvalidConfig)
	}
	if tbl.Len() == 0 {
		return models.NewTable(tbl.ID, tbl.RangeID, nil), nil
	}

	pos := make(map[int64]int, tbl.Len())
	for i, ts := range tbl.Index {
		pos[ts.UnixNano()] = i
	}

	first, last := tbl.Index[0], tbl.Index[tbl.Len()-1]
	index := make([]time.Time, 0, int(last.Sub(first)/step)+1)
	for ts := first; !ts.After(last); ts = ts.Add(step) {
		index = append(index, ts)
	}

	out := models.NewTable(tbl.ID, tbl.RangeID, index)
	for _, col := range tbl.Columns() {
		if col == models.ColID || col == models.ColRangeID {
			continue
		}
		src := tbl.Column(col)
		dst := make([]*float64, len(index))
		for j, ts := range index {
			if i, ok := pos[ts.UnixNano()]; ok {
				dst[j] = src[i]
			}
		}
		if err := out.Set(col, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MovingStats adds mean_<col> and std_<col> for each listed column. The table
// is first put on a regular grid of logPeriod. Each statistic covers the
// trailing span and is shifted back by half the samples of span so it is
// centred on its window; the leading half window stays missing. Windows
// without values yield missing statistics.
func MovingStats(tbl *models.Table, span, logPeriod time.Duration, columns []string) (*models.Table, error) {
	if span < logPeriod {
		return nil, fmt.Errorf("%w: span %s shorter than log period %s", ErrInvalidConfig, span, logPeriod)
	}
	out, err := Regular(tbl, logPeriod)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns = valueColumns(out)
	}

	samples := int(span / logPeriod)
	shift := samples / 2
	n := out.Len()

	for _, col := range columns {
		if !out.Has(col) {
			continue
		}
		src := out.Column(col)
		means := make([]*float64, n)
		stds := make([]*float64, n)

		for i := 0; i < n; i++ {
			windowStart := out.Index[i].Add(-span)
			vals := make([]float64, 0, samples)
			for j := i; j >= 0 && out.Index[j].After(windowStart); j-- {
				if v := src[j]; v != nil && !math.IsNaN(*v) {
					vals = append(vals, *v)
				}
			}
			target := i - shift
			if target < shift || len(vals) == 0 {
				continue
			}
			m, s := stat.MeanStdDev(vals, nil)
			means[target] = &m
			if len(vals) > 1 {
				stds[target] = &s
			}
		}

		if err := out.Set("mean_"+col, means); err != nil {
			return nil, err
		}
		if err := out.Set("std_"+col, stds); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func valueColumns(tbl *models.Table) []string {
	out := make([]string, 0)
	for _, col := range tbl.Columns() {
		if col == models.ColID || col == models.ColRangeID {
			continue
		}
		out = append(out, col)
	}
	return out
}

func columnMean(values []*float64) (float64, bool) {
	vals := present(values)
	if len(vals) == 0 {
		return math.NaN(), false
	}
	return stat.Mean(vals, nil), true
}

func present(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil && !math.IsNaN(*v) {
			out = append(out, *v)
		}
	}
	return out
}

func firstPresent(values []*float64) (float64, bool) {
	for _, v := range values {
		if v != nil && !math.IsNaN(*v) {
			return *v, true
		}
	}
	return math.NaN(), false
}
