package seawater

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// Salinity supplies salinity either as a constant or as a per-sample series.
type Salinity struct {
	constant  float64
	series    *series.Series
	tolerance time.Duration
}

// ConstantSalinity broadcasts a single value to every sample.
func ConstantSalinity(v float64) Salinity {
	return Salinity{constant: v}
}

// SeriesSalinity looks salinity up per sample within tolerance.
func SeriesSalinity(s *series.Series, tolerance time.Duration) Salinity {
	return Salinity{series: s, tolerance: tolerance}
}

// At returns the salinity valid at t.
func (s Salinity) At(t time.Time) (float64, bool) {
	if s.series == nil {
		return s.constant, true
	}
	v, ok := s.series.Lookup(t, s.tolerance)
	if !ok || v == nil || math.IsNaN(*v) {
		return 0, false
	}
	return *v, true
}

// Inputs aligns the sensor series a model needs on the timestamps of the
// primary series (normally a temperature channel).
type Inputs struct {
	Primary   *series.Series
	Pressure  *series.Series
	Tolerance time.Duration
}

func (in Inputs) each(name string, f func(ts time.Time, primary, prs float64) (float64, bool)) *series.Series {
	out := make([]series.Sample, 0, in.Primary.Len())
	for _, smp := range in.Primary.Samples {
		res := series.Sample{TS: smp.TS}
		if smp.Value != nil && !math.IsNaN(*smp.Value) {
			if prs, ok := in.Pressure.Lookup(smp.TS, in.Tolerance); ok && prs != nil && !math.IsNaN(*prs) {
				if v, ok := f(smp.TS, *smp.Value, *prs); ok {
					res.Value = &v
				}
			}
		}
		out = append(out, res)
	}
	return series.New(name, out)
}

// Leroy computes sound speed from a temperature channel (hrt or tpr) and the
// pressure channel.
func Leroy(name string, in Inputs, sal Salinity, lat float64) *series.Series {
	if in.Primary.Empty() || in.Pressure.Empty() {
		return series.New(name, nil)
	}
	return in.each(name, func(ts time.Time, t, prs float64) (float64, bool) {
		s, ok := sal.At(ts)
		if !ok {
			return 0, false
		}
		return SoundSpeedLeroy(t, prs, s, lat), true
	})
}

// Wilson computes sound speed from temperature and pressure.
func Wilson(name string, in Inputs, sal Salinity) *series.Series {
	if in.Primary.Empty() || in.Pressure.Empty() {
		return series.New(name, nil)
	}
	return in.each(name, func(ts time.Time, t, prs float64) (float64, bool) {
		s, ok := sal.At(ts)
		if !ok {
			return 0, false
		}
		return SoundSpeedWilson(t, prs, s), true
	})
}

// DelGrosso computes sound speed from temperature and pressure.
func DelGrosso(name string, in Inputs, sal Salinity) *series.Series {
	if in.Primary.Empty() || in.Pressure.Empty() {
		return series.New(name, nil)
	}
	return in.each(name, func(ts time.Time, t, prs float64) (float64, bool) {
		s, ok := sal.At(ts)
		if !ok {
			return 0, false
		}
		return SoundSpeedDelGrosso(t, prs, s), true
	})
}

// SalinityModel selects the salinity inversion.
type SalinityModel int

const (
	SalinityByWilson SalinityModel = iota
	SalinityByMedwin
)

func (m SalinityModel) String() string {
	if m == SalinityByMedwin {
		return "medwin"
	}
	return "wilson"
}

// ParseSalinityModel accepts "wilson" or "medwin".
func ParseSalinityModel(s string) (SalinityModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wilson":
		return SalinityByWilson, nil
	case "medwin":
		return SalinityByMedwin, nil
	}
	return 0, fmt.Errorf("unknown salinity model %q (want wilson or medwin)", s)
}

// InferSalinity derives salinity from temperature, pressure and the
// measured sound speed. Missing or zero sound speeds yield missing values.
func InferSalinity(name string, in Inputs, ssp *series.Series, model SalinityModel) *series.Series {
	if in.Primary.Empty() || in.Pressure.Empty() || ssp.Empty() {
		return series.New(name, nil)
	}
	return in.each(name, func(ts time.Time, t, prs float64) (float64, bool) {
		v, ok := ssp.Lookup(ts, in.Tolerance)
		if !ok || v == nil || *v == 0 || math.IsNaN(*v) {
			return 0, false
		}
		if model == SalinityByMedwin {
			return SalinityMedwin(t, prs, *v), true
		}
		return SalinityWilson(t, prs, *v), true
	})
}
