// Package baseline turns acoustic range events and sound-speed estimates into
// baseline lengths between pairs of seafloor beacons.
package baseline

// Mean selects how the two end-point sound speeds are averaged.
type Mean int

const (
	Harmonic Mean = iota
	Arithmetic
)

func (m Mean) String() string {
	if m == Arithmetic {
		return "arithmetic"
	}
	return "harmonic"
}

// TravelTime converts a two-way range and turn-around time in milliseconds to
// one-way travel time in seconds.
func TravelTime(rng, tat float64) float64 {
	return ((rng - tat) / 2) / 1000
}

// AMean returns the baseline length using the arithmetic mean sound speed.
func AMean(v1, v2, rng, tat float64) float64 {
	return ((v1 + v2) / 2) * TravelTime(rng, tat)
}

// HMean returns the baseline length using the harmonic mean sound speed.
func HMean(v1, v2, rng, tat float64) float64 {
	return ((2 * v1 * v2) / (v2 + v1)) * TravelTime(rng, tat)
}

// TheoAMean scales a one-way travel time by the arithmetic mean sound speed.
func TheoAMean(v1, v2, tt float64) float64 {
	return ((v1 + v2) / 2) * tt
}

// TheoHMean scales a one-way travel time by the harmonic mean sound speed.
func TheoHMean(v1, v2, tt float64) float64 {
	return ((2 * v1 * v2) / (v2 + v1)) * tt
}

// Substitute applies the single-sided fallback: a zero sound speed on one end
// is replaced by the other end's value. ok is false when both are zero.
func Substitute(v1, v2 float64) (float64, float64, bool) {
	switch {
	case v1 == 0 && v2 == 0:
		return 0, 0, false
	case v1 == 0:
		return v2, v2, true
	case v2 == 0:
		return v1, v1, true
	default:
		return v1, v2, true
	}
}

// Length computes a baseline length with the single-sided fallback applied.
func Length(m Mean, v1, v2, rng, tat float64) (float64, bool) {
	a, b, ok := Substitute(v1, v2)
	if !ok {
		return 0, false
	}
	if m == Arithmetic {
		return AMean(a, b, rng, tat), true
	}
	return HMean(a, b, rng, tat), true
}

// TheoLength is Length for an already one-way travel time.
func TheoLength(m Mean, v1, v2, tt float64) (float64, bool) {
	a, b, ok := Substitute(v1, v2)
	if !ok {
		return 0, false
	}
	if m == Arithmetic {
		return TheoAMean(a, b, tt), true
	}
	return TheoHMean(a, b, tt), true
}

// HarmonicSpeed returns the fallback-aware harmonic mean of two sound speeds.
func HarmonicSpeed(v1, v2 float64) (float64, bool) {
	a, b, ok := Substitute(v1, v2)
	if !ok {
		return 0, false
	}
	if v1 == 0 || v2 == 0 {
		return a, true
	}
	return 2 * a * b / (b + a), true
}
