package models

import (
	"fmt"
	"math"
	"time"
)

// Table column names.
const (
	ColID      = "ID"
	ColRangeID = "range_ID"
	ColRange   = "range"
	ColTAT     = "TAT"
	ColTT      = "tt"
	ColHRT1    = "hrt1"
	ColHRT2    = "hrt2"
	ColPRS1    = "prs1"
	ColPRS2    = "prs2"
	ColTPR1    = "tpr1"
	ColTPR2    = "tpr2"
	ColSAL1    = "sal1"
	ColSAL2    = "sal2"
	ColSSP1    = "ssp1"
	ColSSP2    = "ssp2"
	ColBSL     = "bsl"
	ColSVHRT1  = "sv_hrt1"
	ColSVHRT2  = "sv_hrt2"
	ColBSLHRT  = "bsl_hrt"
	ColSVTPR1  = "sv_tpr1"
	ColSVTPR2  = "sv_tpr2"
	ColBSLTPR  = "bsl_tpr"
	ColHMSSP   = "hmssp"
	ColRecipV  = "1/v"
	ColConst   = "bsl_const"
	ColIntcpt  = "intercept"
	ColStdDev  = "std_dev_tt"
)

// CanonicalColumns is the column order of a pair's published baseline file.
var CanonicalColumns = []string{
	ColID, ColRangeID, ColBSL, ColTT,
	ColSSP1, ColSSP2, ColHRT1, ColHRT2,
	ColPRS1, ColPRS2, ColSAL1, ColSAL2,
	ColRange, ColTAT,
}

// FullColumns is the column order of a pair's complete intermediate file.
var FullColumns = []string{
	ColID, ColRangeID, ColRange, ColTAT, ColTT,
	ColHRT1, ColHRT2, ColPRS1, ColPRS2, ColTPR1, ColTPR2,
	ColSAL1, ColSAL2, ColSSP1, ColSSP2, ColBSL,
	ColSVHRT1, ColSVHRT2, ColBSLHRT,
	ColSVTPR1, ColSVTPR2, ColBSLTPR,
}

// ErrLengthMismatch is returned when a column does not fit the table index.
var ErrLengthMismatch = fmt.Errorf("column length does not match table index")

// Table is a timestamp-indexed set of named numeric columns for one station
// pair. ID and range_ID are constant per table and always present.
type Table struct {
	ID      string
	RangeID string
	Index   []time.Time
	cols    map[string][]*float64
	order   []string
}

// NewTable creates a table with only the identifying columns.
func NewTable(id, rangeID string, index []time.Time) *Table {
	return &Table{
		ID:      id,
		RangeID: rangeID,
		Index:   index,
		cols:    make(map[string][]*float64),
		order:   []string{ColID, ColRangeID},
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Index)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether a column is present.
func (t *Table) Has(col string) bool {
	if col == ColID || col == ColRangeID {
		return true
	}
	_, ok := t.cols[col]
	return ok
}

// Column returns the values of col, or nil when absent.
func (t *Table) Column(col string) []*float64 {
	return t.cols[col]
}

// Value returns the value at row i of col; absent columns read as missing.
func (t *Table) Value(col string, i int) *float64 {
	c, ok := t.cols[col]
	if !ok || i >= len(c) {
		return nil
	}
	return c[i]
}

// Set adds or replaces a column. New columns are appended to the order.
func (t *Table) Set(col string, values []*float64) error {
	if col == ColID || col == ColRangeID {
		return fmt.Errorf("column %q is reserved", col)
	}
	if len(values) != len(t.Index) {
		return fmt.Errorf("set %s: %w (%d != %d)", col, ErrLengthMismatch, len(values), len(t.Index))
	}
	if _, ok := t.cols[col]; !ok {
		t.order = append(t.order, col)
	}
	t.cols[col] = values
	return nil
}

// Ensure returns col, creating an all-missing column when absent.
func (t *Table) Ensure(col string) []*float64 {
	if c, ok := t.cols[col]; ok {
		return c
	}
	c := make([]*float64, len(t.Index))
	_ = t.Set(col, c)
	return c
}

// Count returns the number of non-missing values in col.
func (t *Table) Count(col string) int {
	n := 0
	for _, v := range t.cols[col] {
		if v != nil && !math.IsNaN(*v) {
			n++
		}
	}
	return n
}

// Reorder returns a table holding the listed columns that are present, in
// the listed order. Reordering an already ordered table is a no-op.
func (t *Table) Reorder(columns []string) *Table {
	out := NewTable(t.ID, t.RangeID, t.Index)
	out.order = out.order[:0]
	for _, col := range columns {
		if !t.Has(col) {
			continue
		}
		out.order = append(out.order, col)
		if c, ok := t.cols[col]; ok {
			out.cols[col] = c
		}
	}
	return out
}

// Filter returns a new table with the rows for which keep is true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, t.Len())
	for i := range t.Index {
		if keep(i) {
			idx = append(idx, i)
		}
	}

	index := make([]time.Time, len(idx))
	for j, i := range idx {
		index[j] = t.Index[i]
	}

	out := NewTable(t.ID, t.RangeID, index)
	out.order = append(out.order[:0], t.order...)
	for col, values := range t.cols {
		c := make([]*float64, len(idx))
		for j, i := range idx {
			c[j] = values[i]
		}
		out.cols[col] = c
	}
	return out
}

// Between returns the rows within [start, end]. Zero bounds are open.
func (t *Table) Between(start, end time.Time) *Table {
	return t.Filter(func(i int) bool {
		ts := t.Index[i]
		return (start.IsZero() || !ts.Before(start)) && (end.IsZero() || !ts.After(end))
	})
}
