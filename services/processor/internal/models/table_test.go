package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func sampleTable(t *testing.T) *Table {
	t.Helper()
	base := time.Date(2016, 2, 1, 0, 0, 0, 0, time.UTC)
	tbl := NewTable("2201", "2202", []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)})
	require.NoError(t, tbl.Set(ColRange, []*float64{f(1000), f(1001), f(1002)}))
	require.NoError(t, tbl.Set(ColTAT, []*float64{f(10), f(10), f(10)}))
	require.NoError(t, tbl.Set(ColSSP1, []*float64{f(1480), nil, f(1481)}))
	require.NoError(t, tbl.Set(ColBSL, []*float64{f(730), nil, f(731)}))
	require.NoError(t, tbl.Set(ColTT, []*float64{f(0.495), f(0.4955), f(0.496)}))
	return tbl
}

func TestTableSetRejectsMismatch(t *testing.T) {
	tbl := NewTable("1", "2", []time.Time{time.Unix(0, 0)})
	err := tbl.Set(ColBSL, []*float64{f(1), f(2)})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Error(t, tbl.Set(ColID, []*float64{f(1)}))
}

func TestReorderCanonical(t *testing.T) {
	tbl := sampleTable(t)

	canon := tbl.Reorder(CanonicalColumns)
	assert.Equal(t, []string{ColID, ColRangeID, ColBSL, ColTT, ColSSP1, ColRange, ColTAT}, canon.Columns())

	again := canon.Reorder(CanonicalColumns)
	assert.Equal(t, canon.Columns(), again.Columns())
	assert.Equal(t, canon.Index, again.Index)
	for _, col := range canon.Columns() {
		assert.Equal(t, canon.Column(col), again.Column(col), col)
	}
}

func TestFilterAndCount(t *testing.T) {
	tbl := sampleTable(t)
	assert.Equal(t, 2, tbl.Count(ColBSL))

	kept := tbl.Filter(func(i int) bool { return tbl.Value(ColBSL, i) != nil })
	require.Equal(t, 2, kept.Len())
	assert.Equal(t, tbl.Columns(), kept.Columns())
	assert.Equal(t, 731.0, *kept.Value(ColBSL, 1))
	assert.Equal(t, 1002.0, *kept.Value(ColRange, 1))

	assert.Equal(t, 3, tbl.Len(), "source table untouched")
}

func TestBetween(t *testing.T) {
	tbl := sampleTable(t)
	sub := tbl.Between(tbl.Index[1], time.Time{})
	assert.Equal(t, 2, sub.Len())
}

func TestPairs(t *testing.T) {
	pairs := Pairs([]string{"1", "2", "3"})
	assert.Len(t, pairs, 6)
	assert.Contains(t, pairs, Pair{A: "3", B: "1"})
	assert.Equal(t, "1-2", Pair{A: "1", B: "2"}.String())
	assert.Empty(t, Pairs([]string{"1"}))
}
