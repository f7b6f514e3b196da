package series

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median, averaging the two central values of an even
// sized sample.
func Median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
