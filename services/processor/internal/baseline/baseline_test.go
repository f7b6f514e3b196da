package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
)

var base = time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time {
	return base.Add(time.Duration(h) * time.Hour)
}

func TestEqualSpeedsAgree(t *testing.T) {
	for _, v := range []float64{1450, 1480.5, 1520} {
		h := HMean(v, v, 1000, 10)
		a := AMean(v, v, 1000, 10)
		assert.InDelta(t, a, h, 1e-9)
		assert.InDelta(t, v*(1000-10)/2/1000, h, 1e-9)
	}
	assert.InDelta(t, TheoAMean(1500, 1500, 0.5), TheoHMean(1500, 1500, 0.5), 1e-9)
}

func TestLengthFallback(t *testing.T) {
	tests := []struct {
		name   string
		v1, v2 float64
		want   float64
		ok     bool
	}{
		{name: "second missing", v1: 5, v2: 0, want: HMean(5, 5, 1000, 10), ok: true},
		{name: "first missing", v1: 0, v2: 5, want: HMean(5, 5, 1000, 10), ok: true},
		{name: "both present", v1: 1500, v2: 1480, want: HMean(1500, 1480, 1000, 10), ok: true},
		{name: "both missing", v1: 0, v2: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Length(Harmonic, tt.v1, tt.v2, 1000, 10)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	got, ok := Length(Arithmetic, 0, 1490, 1000, 10)
	require.True(t, ok)
	assert.Equal(t, AMean(1490, 1490, 1000, 10), got)

	got, ok = TheoLength(Harmonic, 1500, 0, 0.5)
	require.True(t, ok)
	assert.Equal(t, 750.0, got)
}

func TestHarmonicSpeed(t *testing.T) {
	v, ok := HarmonicSpeed(1500, 0)
	require.True(t, ok)
	assert.Equal(t, 1500.0, v)

	v, ok = HarmonicSpeed(1500, 1480)
	require.True(t, ok)
	assert.InDelta(t, 2*1500*1480/2980.0, v, 1e-9)

	_, ok = HarmonicSpeed(0, 0)
	assert.False(t, ok)
}

func TestFilterOutliers(t *testing.T) {
	values := []float64{100, 101, 99, 150, 98}
	index := make([]time.Time, len(values))
	col := make([]*float64, len(values))
	for i, v := range values {
		index[i] = hour(i)
		col[i] = utils.Float(v)
	}
	tbl := models.NewTable("1", "2", index)
	require.NoError(t, tbl.Set(models.ColBSL, col))

	mean, ok := ColumnMean(tbl, models.ColBSL)
	require.True(t, ok)
	assert.InDelta(t, 109.6, mean, 1e-9)

	out := FilterOutliers(tbl, models.ColBSL, OutlierThreshold)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, 100.0, *out.Value(models.ColBSL, 0))
	assert.Equal(t, 101.0, *out.Value(models.ColBSL, 1))
}

func TestFilterOutliersDropsMissing(t *testing.T) {
	tbl := models.NewTable("1", "2", []time.Time{hour(0), hour(1)})
	require.NoError(t, tbl.Set(models.ColBSL, []*float64{utils.Float(730), nil}))

	out := FilterOutliers(tbl, models.ColBSL, OutlierThreshold)
	assert.Equal(t, 1, out.Len())
}

func sensor(name string, samples ...series.Sample) *series.Series {
	return series.New(name, samples)
}

func sample(h int, v float64) series.Sample {
	return series.Sample{TS: hour(h), Value: utils.Float(v)}
}

func stationPair() (*models.Station, *models.Station) {
	a := models.NewStation("1")
	a.Ranges = []models.RangeRecord{
		{TS: hour(0), RangeID: "2", Range: 1000, TAT: 10},
		{TS: hour(1), RangeID: "2", Range: 1000, TAT: 10},
		{TS: hour(2), RangeID: "2", Range: 1000, TAT: 10},
		{TS: hour(3), RangeID: "2", Range: 0, TAT: 10},
		{TS: hour(4), RangeID: "3", Range: 1200, TAT: 10},
	}
	a.Sensors[models.SensorSSP] = sensor(models.SensorSSP, sample(0, 1500), sample(1, 1500))
	a.Sensors[models.SensorPRS] = sensor(models.SensorPRS, sample(0, 10000), sample(1, 10001), sample(2, 10002))

	b := models.NewStation("2")
	b.Sensors[models.SensorSSP] = sensor(models.SensorSSP, sample(0, 1480), sample(2, 1490))
	return a, b
}

func TestProcessPair(t *testing.T) {
	a, b := stationPair()
	p := NewProcessor(WithTolerance(time.Minute))

	res := p.Process(a, b)

	require.NoError(t, res.Err)
	assert.Equal(t, models.Pair{A: "1", B: "2"}, res.Pair)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 3, res.Successes[models.ColBSL])
	assert.Equal(t, 0, res.Successes[models.ColBSLHRT])
	assert.Equal(t, 0, res.Successes[models.ColBSLTPR])
	assert.Equal(t, 1, res.MatchFailures[models.ColSSP1])
	assert.Equal(t, 1, res.MatchFailures[models.ColSSP2])
	assert.Equal(t, 0, res.MatchFailures[models.ColPRS1])

	tbl := res.Table
	require.Equal(t, 3, tbl.Len())
	assert.False(t, tbl.Has(models.ColPRS2), "companion has no pressure channel")
	assert.False(t, tbl.Has(models.ColBSLHRT))

	tt := TravelTime(1000, 10)
	assert.InDelta(t, 0.495, tt, 1e-12)
	assert.InDelta(t, HMean(1500, 1480, 1000, 10), *tbl.Value(models.ColBSL, 0), 1e-9)
	assert.InDelta(t, 1500*tt, *tbl.Value(models.ColBSL, 1), 1e-9)
	assert.InDelta(t, 1490*tt, *tbl.Value(models.ColBSL, 2), 1e-9)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, tt, *tbl.Value(models.ColTT, i), 1e-12)
	}

	canon := res.Canonical()
	assert.Equal(t, []string{
		models.ColID, models.ColRangeID, models.ColBSL, models.ColTT,
		models.ColSSP1, models.ColSSP2, models.ColPRS1, models.ColRange, models.ColTAT,
	}, canon.Columns())
}

func TestProcessPairSideTwoFromCompanion(t *testing.T) {
	a, b := stationPair()
	b.Sensors[models.SensorHRT] = sensor(models.SensorHRT, sample(0, 2.5))

	res := NewProcessor(WithTolerance(time.Minute)).Process(a, b)

	require.True(t, res.Table.Has(models.ColHRT2))
	assert.False(t, res.Table.Has(models.ColHRT1))
	assert.Equal(t, 2.5, *res.Table.Value(models.ColHRT2, 0))
}

func TestProcessPairTprUsesOwnColumns(t *testing.T) {
	a, b := stationPair()
	a.Sensors[models.SensorSVLTPR] = sensor(models.SensorSVLTPR, sample(0, 1470))
	b.Sensors[models.SensorSVLHRT] = sensor(models.SensorSVLHRT, sample(0, 1475))

	res := NewProcessor(WithTolerance(time.Minute)).Process(a, b)

	assert.Equal(t, 1, res.Successes[models.ColBSLTPR])
	assert.Equal(t, 1, res.Successes[models.ColBSLHRT])
	assert.InDelta(t, 1470*0.495, *res.Table.Value(models.ColBSLTPR, 0), 1e-9)
	assert.InDelta(t, 1475*0.495, *res.Table.Value(models.ColBSLHRT, 0), 1e-9)
}

func TestProcessPairWithoutCompanionSensors(t *testing.T) {
	a, _ := stationPair()
	b := models.NewStation("2")

	res := NewProcessor().Process(a, b)

	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 0, res.Successes[models.ColBSL])
	assert.Equal(t, []string{models.ColID, models.ColRangeID, models.ColRange, models.ColTAT}, res.Table.Columns())
}

func TestProcessPairWithoutRanges(t *testing.T) {
	a, b := stationPair()

	res := NewProcessor().Process(b, a)

	assert.Zero(t, res.Records)
	assert.Zero(t, res.Table.Len())
	assert.NoError(t, res.Err)
}

func TestProcessPairOutlierFilter(t *testing.T) {
	a, b := stationPair()
	a.Ranges = append(a.Ranges, models.RangeRecord{TS: hour(1).Add(30 * time.Second), RangeID: "2", Range: 1033, TAT: 10})

	res := NewProcessor(WithTolerance(time.Minute), WithOutlierFilter(true)).Process(a, b)

	assert.Equal(t, 4, res.Records)
	assert.Equal(t, 3, res.Table.Len(), "the long range is rejected")
}

func TestRun(t *testing.T) {
	a, b := stationPair()
	c := models.NewStation("3")

	p := NewProcessor(WithTolerance(time.Minute), WithWorkers(2))
	results, err := p.Run(context.Background(), []*models.Station{c, b, a})

	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, models.Pair{A: "1", B: "2"}, results[0].Pair)
	assert.Equal(t, 3, results[0].Successes[models.ColBSL])
	assert.Equal(t, models.Pair{A: "1", B: "3"}, results[1].Pair)
	assert.Equal(t, 1, results[1].Records)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestRunRejectsDuplicates(t *testing.T) {
	a, _ := stationPair()
	_, err := NewProcessor().Run(context.Background(), []*models.Station{a, a})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	a, b := stationPair()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor().Run(ctx, []*models.Station{a, b})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIsolatesPanickingPair(t *testing.T) {
	a, b := stationPair()
	p := NewProcessor(WithTolerance(time.Minute), WithWorkers(2))
	p.process = func(x, y *models.Station) models.PairResult {
		if x.ID == "2" {
			panic("corrupt sensor table")
		}
		return p.Process(x, y)
	}

	results, err := p.Run(context.Background(), []*models.Station{a, b})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.Pair{A: "1", B: "2"}, results[0].Pair)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Successes[models.ColBSL])

	assert.Equal(t, models.Pair{A: "2", B: "1"}, results[1].Pair)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "pair 2-1: panic: corrupt sensor table")
	assert.Nil(t, results[1].Table)
}

func TestSafeProcessRecoversNilStation(t *testing.T) {
	a, _ := stationPair()

	res := NewProcessor().safeProcess(a, nil)

	assert.Equal(t, models.Pair{A: "1", B: ""}, res.Pair)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panic")
}
