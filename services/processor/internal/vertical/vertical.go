// Package vertical derives relative vertical motion between stations from
// their pressure records.
package vertical

import (
	"fmt"
	"sort"
	"time"

	"github.com/sosodev/duration"
	"gonum.org/v1/gonum/stat"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// DefaultWindow is the binning window for differences, in ISO-8601 form.
const DefaultWindow = "P7D"

// ParseWindow parses an ISO-8601 duration such as "P7D" or "PT12H".
func ParseWindow(iso string) (time.Duration, error) {
	d, err := duration.Parse(iso)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", iso, err)
	}
	w := d.ToTimeDuration()
	if w <= 0 {
		return 0, fmt.Errorf("invalid window %q: must be positive", iso)
	}
	return w, nil
}

// Pressure converts kPa to dbar and removes the mean.
func Pressure(prs *series.Series) *series.Series {
	dbar := prs.Map(models.SensorPRS, func(v float64) float64 { return (v - 100) / 10 })
	return demean(dbar)
}

// Correct subtracts a tide series, de-meaned and interpolated onto the
// pressure timestamps. Samples without a tide value are dropped.
func Correct(prs, tide *series.Series) *series.Series {
	if tide.Empty() {
		return prs
	}
	tides := demean(tide).Interpolate("tide", prs.Times())
	return subtract(models.SensorPRS, prs, tides)
}

// Difference is the relative vertical motion of station B against A.
type Difference struct {
	Pair models.Pair
	// Raw is B minus A interpolated onto B's timestamps, in dbar.
	Raw *series.Series
	// Median holds the per-window medians of Raw.
	Median *series.Series
	// OffsetCM is the change between the first and last window in cm.
	OffsetCM float64
}

// Differences computes the vertical motion for every ordered station pair.
// Pressures are raw kPa series keyed by station ID; tide may be nil.
func Differences(pressures map[string]*series.Series, tide *series.Series, window time.Duration) ([]Difference, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	ids := make([]string, 0, len(pressures))
	for id := range pressures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	corrected := make(map[string]*series.Series, len(ids))
	for _, id := range ids {
		corrected[id] = Correct(Pressure(pressures[id]), tide)
	}

	out := make([]Difference, 0, len(ids)*len(ids))
	for _, pair := range models.Pairs(ids) {
		p1, p2 := corrected[pair.A], corrected[pair.B]
		raw := subtract(models.SensorPRS, p2, p1.Interpolate(models.SensorPRS, p2.Times()))
		med := BinMedian(raw, window)

		d := Difference{Pair: pair, Raw: raw, Median: med}
		first, okFirst := med.First()
		last, okLast := med.Last()
		if okFirst && okLast {
			d.OffsetCM = (last - first) * 100
		}
		out = append(out, d)
	}
	return out, nil
}

// BinMedian groups samples into consecutive windows starting at the first
// sample and returns the median of each non-empty window, stamped at the
// window start.
func BinMedian(s *series.Series, window time.Duration) *series.Series {
	if s.Empty() {
		return series.New(s.Name, nil)
	}
	origin := s.Samples[0].TS

	bins := make(map[int64][]float64)
	keys := make([]int64, 0)
	for _, smp := range s.Samples {
		if smp.Value == nil {
			continue
		}
		k := int64(smp.TS.Sub(origin) / window)
		if _, ok := bins[k]; !ok {
			keys = append(keys, k)
		}
		bins[k] = append(bins[k], *smp.Value)
	}

	out := make([]series.Sample, 0, len(keys))
	for _, k := range keys {
		m := series.Median(bins[k])
		out = append(out, series.Sample{TS: origin.Add(time.Duration(k) * window), Value: &m})
	}
	return series.New(s.Name, out)
}

func demean(s *series.Series) *series.Series {
	values := s.Values()
	if len(values) == 0 {
		return s
	}
	mean := stat.Mean(values, nil)
	return s.Map(s.Name, func(v float64) float64 { return v - mean })
}

// subtract returns a-b on a's timestamps, dropping samples where either is
// missing. b must share a's timestamps.
func subtract(name string, a, b *series.Series) *series.Series {
	out := make([]series.Sample, 0, a.Len())
	for i, smp := range a.Samples {
		if i >= b.Len() || smp.Value == nil || b.Samples[i].Value == nil {
			continue
		}
		v := *smp.Value - *b.Samples[i].Value
		out = append(out, series.Sample{TS: smp.TS, Value: &v})
	}
	return series.New(name, out)
}
