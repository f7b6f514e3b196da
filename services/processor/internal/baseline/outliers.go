package baseline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
)

// ColumnMean returns the mean of the non-missing values of col.
func ColumnMean(tbl *models.Table, col string) (float64, bool) {
	values := make([]float64, 0, tbl.Len())
	for _, v := range tbl.Column(col) {
		if v != nil && !math.IsNaN(*v) {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return math.NaN(), false
	}
	return stat.Mean(values, nil), true
}

// FilterOutliers keeps the rows whose col value lies strictly within
// threshold of the column mean. The mean is taken once over all non-missing
// values. Rows with a missing value are dropped.
func FilterOutliers(tbl *models.Table, col string, threshold float64) *models.Table {
	mean, _ := ColumnMean(tbl, col)
	return tbl.Filter(func(i int) bool {
		v := tbl.Value(col, i)
		if v == nil {
			return false
		}
		return *v < mean+threshold && *v > mean-threshold
	})
}
