package series

import (
	"math"
	"sort"
	"time"
)

// Sample is a single timestamped observation. A nil Value means missing.
type Sample struct {
	TS    time.Time
	Value *float64
}

// Series is an ordered, duplicate-free sequence of samples for one quantity.
type Series struct {
	Name    string
	Samples []Sample
}

// New sorts samples by timestamp and drops duplicate timestamps, keeping the
// first occurrence.
func New(name string, samples []Sample) *Series {
	out := make([]Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })

	dedup := out[:0]
	for i, s := range out {
		if i > 0 && s.TS.Equal(dedup[len(dedup)-1].TS) {
			continue
		}
		dedup = append(dedup, s)
	}
	return &Series{Name: name, Samples: dedup}
}

// FromValues builds a series from parallel timestamp and value slices.
func FromValues(name string, ts []time.Time, values []*float64) *Series {
	samples := make([]Sample, 0, len(ts))
	for i := range ts {
		var v *float64
		if i < len(values) {
			v = values[i]
		}
		samples = append(samples, Sample{TS: ts[i], Value: v})
	}
	return New(name, samples)
}

// Len returns the number of samples; nil series are empty.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// Empty reports whether the series has no samples.
func (s *Series) Empty() bool {
	return s.Len() == 0
}

// Times returns the sample timestamps.
func (s *Series) Times() []time.Time {
	out := make([]time.Time, s.Len())
	for i := range out {
		out[i] = s.Samples[i].TS
	}
	return out
}

// Values returns the non-missing values in timestamp order.
func (s *Series) Values() []float64 {
	out := make([]float64, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		if v := s.Samples[i].Value; v != nil && !math.IsNaN(*v) {
			out = append(out, *v)
		}
	}
	return out
}

// Between returns the samples within [start, end]. Zero bounds are open.
func (s *Series) Between(start, end time.Time) *Series {
	out := make([]Sample, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		ts := s.Samples[i].TS
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		out = append(out, s.Samples[i])
	}
	return &Series{Name: s.Name, Samples: out}
}

// Map applies f to every non-missing value and returns a new series.
func (s *Series) Map(name string, f func(float64) float64) *Series {
	out := make([]Sample, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		smp := Sample{TS: s.Samples[i].TS}
		if v := s.Samples[i].Value; v != nil {
			r := f(*v)
			smp.Value = &r
		}
		out = append(out, smp)
	}
	return &Series{Name: name, Samples: out}
}

// First returns the first non-missing value.
func (s *Series) First() (float64, bool) {
	for i := 0; i < s.Len(); i++ {
		if v := s.Samples[i].Value; v != nil && !math.IsNaN(*v) {
			return *v, true
		}
	}
	return 0, false
}

// Last returns the last non-missing value.
func (s *Series) Last() (float64, bool) {
	for i := s.Len() - 1; i >= 0; i-- {
		if v := s.Samples[i].Value; v != nil && !math.IsNaN(*v) {
			return *v, true
		}
	}
	return 0, false
}

// search returns the index of the first sample at or after t.
func (s *Series) search(t time.Time) int {
	return sort.Search(len(s.Samples), func(i int) bool {
		return !s.Samples[i].TS.Before(t)
	})
}
