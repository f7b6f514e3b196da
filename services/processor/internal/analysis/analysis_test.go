package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

var base = time.Date(2016, 7, 1, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func hourlyTable(t *testing.T, col string, values ...float64) *models.Table {
	t.Helper()
	index := make([]time.Time, len(values))
	vals := make([]*float64, len(values))
	for i, v := range values {
		index[i] = base.Add(time.Duration(i) * time.Hour)
		vals[i] = f(v)
	}
	tbl := models.NewTable("1", "2", index)
	require.NoError(t, tbl.Set(col, vals))
	return tbl
}

func TestRegularFillsGaps(t *testing.T) {
	tbl := models.NewTable("1", "2", []time.Time{base, base.Add(time.Hour), base.Add(3 * time.Hour)})
	require.NoError(t, tbl.Set(models.ColBSL, []*float64{f(1), f(2), f(4)}))

	out, err := Regular(tbl, time.Hour)

	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	assert.Nil(t, out.Value(models.ColBSL, 2))
	assert.Equal(t, 4.0, *out.Value(models.ColBSL, 3))

	_, err = Regular(tbl, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMovingStats(t *testing.T) {
	tbl := hourlyTable(t, models.ColBSL, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	out, err := MovingStats(tbl, 4*time.Hour, time.Hour, []string{models.ColBSL})

	require.NoError(t, err)
	means := out.Column("mean_" + models.ColBSL)
	stds := out.Column("std_" + models.ColBSL)
	require.Len(t, means, 10)

	assert.Nil(t, means[0])
	assert.Nil(t, means[1])
	assert.InDelta(t, 3.5, *means[2], 1e-12)
	assert.InDelta(t, 8.5, *means[7], 1e-12)
	assert.Nil(t, means[8])
	assert.Nil(t, means[9])
	assert.InDelta(t, math.Sqrt(5.0/3.0), *stds[2], 1e-12)

	_, err = MovingStats(tbl, time.Minute, time.Hour, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDiffRel(t *testing.T) {
	tbl := hourlyTable(t, models.ColBSL, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	out, err := DiffRel([]*models.Table{tbl}, 4*time.Hour, time.Hour, []string{models.ColBSL}, []float64{1000})

	require.NoError(t, err)
	require.Len(t, out, 1)
	diff := out[0].Column("diff_" + models.ColBSL)
	rel := out[0].Column("rel_" + models.ColBSL)
	assert.InDelta(t, -2000.0, *diff[2], 1e-9)
	assert.InDelta(t, 0.0, *rel[2], 1e-9)
	assert.InDelta(t, 5000.0, *rel[7], 1e-9)
	assert.Nil(t, diff[0])

	_, err = DiffRel([]*models.Table{tbl}, 4*time.Hour, time.Hour, []string{models.ColBSL}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		in   string
		want Reference
	}{
		{in: "first", want: Reference{Kind: RefFirst}},
		{in: "", want: Reference{Kind: RefFirst}},
		{in: "Median", want: Reference{Kind: RefMedian}},
		{in: "mean", want: Reference{Kind: RefMean}},
		{in: "bsl_hrt", want: Reference{Kind: RefColumn, Column: "bsl_hrt"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseReference(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "bsl_hrt", Reference{Kind: RefColumn, Column: "bsl_hrt"}.String())
}

func TestFractionalChange(t *testing.T) {
	tbl := hourlyTable(t, models.ColBSL, 100, 110)

	tests := []struct {
		name string
		ref  Reference
		want float64
	}{
		{name: "mean", ref: Reference{Kind: RefMean}, want: (100 - 105) / 105.0 * 1e6},
		{name: "median", ref: Reference{Kind: RefMedian}, want: (100 - 105) / 105.0 * 1e6},
		{name: "first falls back to median", ref: Reference{Kind: RefFirst}, want: (100 - 105) / 105.0 * 1e6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := FractionalChange(tbl, []string{models.ColBSL}, tt.ref)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, *out.Value("fc_"+models.ColBSL, 0), 1e-6)
		})
	}

	assert.False(t, tbl.Has("fc_"+models.ColBSL), "input untouched")
}

func TestFractionalChangeColumnReference(t *testing.T) {
	tbl := hourlyTable(t, models.ColBSL, 100, 110)
	require.NoError(t, tbl.Set(models.ColBSLHRT, []*float64{f(100), f(100)}))

	out, err := FractionalChange(tbl, []string{models.ColBSL}, Reference{Kind: RefColumn, Column: models.ColBSLHRT})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, *out.Value("fc_"+models.ColBSL, 0), 1e-9)
	assert.InDelta(t, 1e5, *out.Value("fc_"+models.ColBSL, 1), 1e-6)

	_, err = FractionalChange(tbl, nil, Reference{Kind: RefColumn, Column: "nope"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFractionalChangeReciprocalSpeed(t *testing.T) {
	tbl := hourlyTable(t, models.ColHMSSP, 1500, 1500)
	require.NoError(t, tbl.Set(models.ColRecipV, []*float64{f(1 / 1500.0), f(1 / 1480.0)}))

	out, err := FractionalChange(tbl, []string{models.ColRecipV}, Reference{Kind: RefMean})

	require.NoError(t, err)
	assert.InDelta(t, 0.0, *out.Value("fc_1/v", 0), 1e-6)
	assert.InDelta(t, (1500/1480.0-1)*1e6, *out.Value("fc_1/v", 1), 1e-6)
}

func TestRangeSoundSpeed(t *testing.T) {
	tbl := hourlyTable(t, models.ColBSL, 740, 742)
	require.NoError(t, tbl.Set(models.ColTT, []*float64{f(0.5), nil}))

	ssp, err := RangeSoundSpeed(tbl, models.Pair{A: "1", B: "2"})

	require.NoError(t, err)
	require.Equal(t, 2, ssp.Len())
	assert.InDelta(t, 1482.0, *ssp.Samples[0].Value, 1e-9)
	assert.Nil(t, ssp.Samples[1].Value)

	_, err = RangeSoundSpeed(tbl, models.Pair{A: "2", B: "1"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func hourlySeries(name string, hours int, fn func(h int) float64) *series.Series {
	samples := make([]series.Sample, hours)
	for h := range samples {
		samples[h] = series.Sample{TS: base.Add(time.Duration(h) * time.Hour), Value: f(fn(h))}
	}
	return series.New(name, samples)
}

func TestReplace(t *testing.T) {
	broken := hourlySeries("prs", 10, func(h int) float64 {
		if h < 5 {
			return 10 + float64(h)
		}
		return 999
	})
	neighbour := hourlySeries("prs", 10, func(h int) float64 { return 50 + 2*float64(h) })

	out, err := Replace(broken, neighbour, base.Add(5*time.Hour))

	require.NoError(t, err)
	require.Equal(t, 10, out.Len())
	assert.Equal(t, 14.0, *out.Samples[4].Value)
	assert.InDelta(t, 14.0, *out.Samples[5].Value, 1e-9)
	assert.InDelta(t, 16.0, *out.Samples[6].Value, 1e-9)
	assert.InDelta(t, 22.0, *out.Samples[9].Value, 1e-9)
}

func TestReplaceWholeRecord(t *testing.T) {
	broken := hourlySeries("hrt", 3, func(h int) float64 { return 2 })
	neighbour := hourlySeries("hrt", 3, func(h int) float64 { return 3 + float64(h) })

	out, err := Replace(broken, neighbour, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, out.Values())

	_, err = Replace(broken, series.New("hrt", nil), time.Time{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
