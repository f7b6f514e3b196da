package series

import (
	"math"
	"time"
)

// Interpolate evaluates s at each target timestamp by piecewise linear
// interpolation between neighbouring non-missing samples. Targets outside the
// covered range are missing.
func (s *Series) Interpolate(name string, targets []time.Time) *Series {
	valid := make([]Sample, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		if v := s.Samples[i].Value; v != nil && !math.IsNaN(*v) {
			valid = append(valid, s.Samples[i])
		}
	}
	src := &Series{Samples: valid}

	out := make([]Sample, 0, len(targets))
	for _, t := range targets {
		out = append(out, Sample{TS: t, Value: src.linearAt(t)})
	}
	return New(name, out)
}

func (s *Series) linearAt(t time.Time) *float64 {
	n := len(s.Samples)
	if n == 0 {
		return nil
	}
	idx := s.search(t)
	if idx < n && s.Samples[idx].TS.Equal(t) {
		v := *s.Samples[idx].Value
		return &v
	}
	if idx == 0 || idx == n {
		return nil
	}

	lo, hi := s.Samples[idx-1], s.Samples[idx]
	span := hi.TS.Sub(lo.TS).Seconds()
	frac := t.Sub(lo.TS).Seconds() / span
	v := *lo.Value + (*hi.Value-*lo.Value)*frac
	return &v
}
