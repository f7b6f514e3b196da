package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func f(v float64) *float64 {
	return &v
}

func TestNewSortsAndDeduplicates(t *testing.T) {
	s := New("ssp", []Sample{
		{TS: at(30), Value: f(3)},
		{TS: at(10), Value: f(1)},
		{TS: at(30), Value: f(99)},
		{TS: at(20), Value: f(2)},
	})

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []time.Time{at(10), at(20), at(30)}, s.Times())
	assert.Equal(t, []float64{1, 2, 3}, s.Values())
}

func TestMatch(t *testing.T) {
	src := New("hrt", []Sample{{TS: at(100), Value: f(4.2)}})
	def := f(-1)

	values, failures := Match([]time.Time{at(105), at(200)}, src, 10*time.Second, def)

	require.Len(t, values, 2)
	assert.Equal(t, 4.2, *values[0])
	assert.Equal(t, -1.0, *values[1])
	assert.Equal(t, 1, failures)
}

func TestMatchMissingDefault(t *testing.T) {
	src := New("hrt", []Sample{{TS: at(100), Value: f(4.2)}})

	values, failures := Match([]time.Time{at(500)}, src, time.Second, nil)

	require.Len(t, values, 1)
	assert.Nil(t, values[0])
	assert.Equal(t, 1, failures)
}

func TestMatchEmptyInputs(t *testing.T) {
	tests := []struct {
		name    string
		targets []time.Time
		src     *Series
	}{
		{name: "empty source", targets: []time.Time{at(1)}, src: New("x", nil)},
		{name: "nil source", targets: []time.Time{at(1)}, src: nil},
		{name: "empty targets", targets: nil, src: New("x", []Sample{{TS: at(1), Value: f(1)}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, failures := Match(tt.targets, tt.src, time.Minute, nil)
			assert.Nil(t, values)
			assert.Zero(t, failures)
		})
	}
}

func TestNearestTieBreaksToEarliest(t *testing.T) {
	src := New("prs", []Sample{
		{TS: at(90), Value: f(1)},
		{TS: at(110), Value: f(2)},
	})

	smp, ok := src.Nearest(at(100), 10*time.Second)

	require.True(t, ok)
	assert.Equal(t, 1.0, *smp.Value)
}

func TestLookupExactWithZeroTolerance(t *testing.T) {
	src := New("prs", []Sample{{TS: at(50), Value: f(7)}})

	v, ok := src.Lookup(at(50), 0)
	require.True(t, ok)
	assert.Equal(t, 7.0, *v)

	_, ok = src.Lookup(at(51), 0)
	assert.False(t, ok)
}

func TestInterpolate(t *testing.T) {
	src := New("prs", []Sample{
		{TS: at(0), Value: f(0)},
		{TS: at(10), Value: nil},
		{TS: at(20), Value: f(20)},
	})

	out := src.Interpolate("prs", []time.Time{at(-5), at(5), at(15), at(20), at(25)})

	require.Equal(t, 5, out.Len())
	assert.Nil(t, out.Samples[0].Value)
	assert.InDelta(t, 5.0, *out.Samples[1].Value, 1e-12)
	assert.InDelta(t, 15.0, *out.Samples[2].Value, 1e-12)
	assert.InDelta(t, 20.0, *out.Samples[3].Value, 1e-12)
	assert.Nil(t, out.Samples[4].Value)
}

func TestBetween(t *testing.T) {
	src := New("x", []Sample{
		{TS: at(0), Value: f(0)},
		{TS: at(10), Value: f(1)},
		{TS: at(20), Value: f(2)},
	})

	assert.Equal(t, 2, src.Between(at(5), time.Time{}).Len())
	assert.Equal(t, 2, src.Between(time.Time{}, at(10)).Len())
	assert.Equal(t, 3, src.Between(time.Time{}, time.Time{}).Len())
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))
}
