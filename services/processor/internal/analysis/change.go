package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// DiffRel adds moving statistics plus diff_<col> (moving mean minus the
// column mean) and rel_<col> (moving mean minus its first value) to each
// table, scaled per column by factors. nil factors mean 1 for every column.
func DiffRel(tables []*models.Table, span, logPeriod time.Duration, columns []string, factors []float64) ([]*models.Table, error) {
	if factors == nil {
		factors = make([]float64, len(columns))
		for i := range factors {
			factors[i] = 1
		}
	}
	if len(factors) != len(columns) {
		return nil, fmt.Errorf("%w: %d factors for %d columns", ErrInvalidConfig, len(factors), len(columns))
	}

	out := make([]*models.Table, 0, len(tables))
	for _, tbl := range tables {
		stats, err := MovingStats(tbl, span, logPeriod, columns)
		if err != nil {
			return nil, err
		}
		for j, col := range columns {
			if !stats.Has(col) {
				continue
			}
			means := stats.Column("mean_" + col)
			colMean, _ := columnMean(stats.Column(col))
			first, _ := firstPresent(means)

			diff := make([]*float64, stats.Len())
			rel := make([]*float64, stats.Len())
			for i, m := range means {
				if m == nil {
					continue
				}
				d := (*m - colMean) * factors[j]
				r := (*m - first) * factors[j]
				diff[i] = &d
				rel[i] = &r
			}
			if err := stats.Set("diff_"+col, diff); err != nil {
				return nil, err
			}
			if err := stats.Set("rel_"+col, rel); err != nil {
				return nil, err
			}
		}
		out = append(out, stats)
	}
	return out, nil
}

// ReferenceKind selects the reference value of a fractional change.
type ReferenceKind int

const (
	// RefFirst uses the first moving average of the column, falling back to
	// the median when no moving average exists.
	RefFirst ReferenceKind = iota
	RefMedian
	RefMean
	// RefColumn uses another column row by row.
	RefColumn
)

// Reference is the reference value policy of FractionalChange.
type Reference struct {
	Kind   ReferenceKind
	Column string
}

// ParseReference maps "first", "median", "mean" or a column name to a
// Reference.
func ParseReference(s string) Reference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return Reference{Kind: RefFirst}
	case "median":
		return Reference{Kind: RefMedian}
	case "mean":
		return Reference{Kind: RefMean}
	default:
		return Reference{Kind: RefColumn, Column: strings.TrimSpace(s)}
	}
}

func (r Reference) String() string {
	switch r.Kind {
	case RefFirst:
		return "first"
	case RefMedian:
		return "median"
	case RefMean:
		return "mean"
	default:
		return r.Column
	}
}

// FractionalChange adds fc_<col> = (col - ref) / ref * 1e6 for each listed
// column. Columns of reciprocal sound speed take their reference from hmssp
// and compare against its reciprocal.
func FractionalChange(tbl *models.Table, columns []string, ref Reference) (*models.Table, error) {
	if ref.Kind == RefColumn && !tbl.Has(ref.Column) {
		return nil, fmt.Errorf("%w: unknown reference column %q", ErrInvalidConfig, ref.Column)
	}
	if len(columns) == 0 {
		columns = valueColumns(tbl)
	}

	out := tbl.Filter(func(int) bool { return true })
	for _, item := range columns {
		if !out.Has(item) {
			continue
		}
		reciprocal := strings.Contains(item, models.ColRecipV)
		rcol := item
		if reciprocal {
			rcol = models.ColHMSSP
		}

		refs, err := referenceValues(out, rcol, ref)
		if err != nil {
			return nil, err
		}

		values := out.Column(item)
		if item == "mean_"+models.ColRecipV && out.Has("mean_"+models.ColHMSSP) {
			values = inverse(out.Column("mean_" + models.ColHMSSP))
		}

		fc := make([]*float64, out.Len())
		for i, v := range values {
			r := refs(i)
			if v == nil || r == nil || *r == 0 {
				continue
			}
			rv := *r
			if reciprocal {
				rv = 1 / rv
			}
			x := (*v - rv) / rv * 1e6
			fc[i] = &x
		}
		if err := out.Set("fc_"+item, fc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func referenceValues(tbl *models.Table, rcol string, ref Reference) (func(i int) *float64, error) {
	constant := func(v float64, ok bool) func(int) *float64 {
		return func(int) *float64 {
			if !ok {
				return nil
			}
			return &v
		}
	}

	kind := ref.Kind
	if kind == RefFirst {
		col := rcol
		if !strings.Contains(rcol, "mean") {
			col = "mean_" + rcol
		}
		if tbl.Has(col) {
			return constant(firstPresent(tbl.Column(col))), nil
		}
		kind = RefMedian
	}

	switch kind {
	case RefMedian:
		vals := present(tbl.Column(rcol))
		return constant(series.Median(vals), len(vals) > 0), nil
	case RefMean:
		return constant(columnMean(tbl.Column(rcol))), nil
	case RefColumn:
		col := tbl.Column(ref.Column)
		return func(i int) *float64 { return col[i] }, nil
	default:
		return nil, fmt.Errorf("%w: unknown reference %d", ErrInvalidConfig, ref.Kind)
	}
}

func inverse(values []*float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if v == nil || *v == 0 {
			continue
		}
		x := 1 / *v
		out[i] = &x
	}
	return out
}
