package series

import (
	"time"
)

// Nearest returns the sample closest to t within tolerance. On exact
// equidistance the earlier sample wins.
func (s *Series) Nearest(t time.Time, tolerance time.Duration) (Sample, bool) {
	if s.Empty() {
		return Sample{}, false
	}

	idx := s.search(t)

	var best Sample
	found := false
	minDiff := tolerance + 1
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(s.Samples) {
			continue
		}
		diff := absDuration(s.Samples[i].TS.Sub(t))
		if diff <= tolerance && diff < minDiff {
			best = s.Samples[i]
			minDiff = diff
			found = true
		}
	}
	return best, found
}

// Exact returns the sample stamped exactly at t.
func (s *Series) Exact(t time.Time) (Sample, bool) {
	if s.Empty() {
		return Sample{}, false
	}
	idx := s.search(t)
	if idx < len(s.Samples) && s.Samples[idx].TS.Equal(t) {
		return s.Samples[idx], true
	}
	return Sample{}, false
}

// Lookup resolves one target timestamp: nearest within tolerance first, then
// an exact match.
func (s *Series) Lookup(t time.Time, tolerance time.Duration) (*float64, bool) {
	if smp, ok := s.Nearest(t, tolerance); ok {
		return smp.Value, true
	}
	if smp, ok := s.Exact(t); ok {
		return smp.Value, true
	}
	return nil, false
}

// Match produces one value per target timestamp from src. Unresolved targets
// receive def and are counted as failures. When either side is empty the
// result is nil with zero failures, meaning no column should be added.
func Match(targets []time.Time, src *Series, tolerance time.Duration, def *float64) ([]*float64, int) {
	if len(targets) == 0 || src.Empty() {
		return nil, 0
	}

	out := make([]*float64, len(targets))
	failures := 0
	for i, t := range targets {
		v, ok := src.Lookup(t, tolerance)
		if !ok {
			out[i] = def
			failures++
			continue
		}
		out[i] = v
	}
	return out, failures
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
