package analysis

import (
	"fmt"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// RangeSoundSpeed estimates the sound speed along a baseline as the mean
// baseline length divided by each row's travel time.
func RangeSoundSpeed(tbl *models.Table, pair models.Pair) (*series.Series, error) {
	if tbl.ID != pair.A || tbl.RangeID != pair.B {
		return nil, fmt.Errorf("%w: table holds %s-%s, not %s", ErrInvalidConfig, tbl.ID, tbl.RangeID, pair)
	}
	mean, ok := columnMean(tbl.Column(models.ColBSL))
	if !ok {
		return series.New(models.SensorSSP, nil), nil
	}

	samples := make([]series.Sample, 0, tbl.Len())
	for i, ts := range tbl.Index {
		smp := series.Sample{TS: ts}
		if tt := tbl.Value(models.ColTT, i); tt != nil && *tt != 0 {
			v := mean / *tt
			smp.Value = &v
		}
		samples = append(samples, smp)
	}
	return series.New(models.SensorSSP, samples), nil
}

// Replace substitutes the part of a broken sensor record from start onwards
// with the neighbour's record. The neighbour is reduced to changes relative
// to its first value after start, interpolated onto the broken record's
// timestamps and anchored at the last good value before start. A zero start
// replaces the whole record, anchored at its first value.
func Replace(broken, neighbour *series.Series, start time.Time) (*series.Series, error) {
	if broken.Empty() || neighbour.Empty() {
		return nil, fmt.Errorf("%w: replacement needs both records", ErrInvalidConfig)
	}

	var old, tail *series.Series
	var anchor float64
	var ok bool
	if start.IsZero() {
		old = series.New(broken.Name, nil)
		tail = broken
		anchor, ok = broken.First()
	} else {
		old = broken.Between(time.Time{}, start.Add(-time.Nanosecond))
		tail = broken.Between(start, time.Time{})
		anchor, ok = old.Last()
	}
	if !ok {
		return nil, fmt.Errorf("%w: no good %s value to anchor replacement", ErrInvalidConfig, broken.Name)
	}

	nb := neighbour
	if !start.IsZero() {
		nb = neighbour.Between(start, time.Time{})
	}
	ref, ok := nb.First()
	if !ok {
		return nil, fmt.Errorf("%w: neighbour has no %s data after %s", ErrInvalidConfig, neighbour.Name, start.Format(time.RFC3339))
	}

	shifted := nb.Map(nb.Name, func(v float64) float64 { return v - ref + anchor })
	repl := shifted.Interpolate(broken.Name, tail.Times())

	samples := make([]series.Sample, 0, old.Len()+repl.Len())
	samples = append(samples, old.Samples...)
	samples = append(samples, repl.Samples...)
	return series.New(broken.Name, samples), nil
}
