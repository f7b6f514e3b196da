package utils

import (
	"fmt"
	"math"
)

// OutOfWaterSSP is logged by the sound-speed sensor while it is not submerged.
const OutOfWaterSSP = 9996.0

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// NormalizeValue cleans raw sensor values; NaN -> nil.
func NormalizeValue(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	val := *v
	return &val
}

// NormalizeSoundSpeed cleans sound-speed values; zero and the out-of-water
// sentinel -> nil.
func NormalizeSoundSpeed(v *float64) *float64 {
	v = NormalizeValue(v)
	if v == nil {
		return nil
	}
	if *v == 0 || *v == OutOfWaterSSP {
		return nil
	}
	return v
}

// Present reports whether v carries a usable sound speed.
func Present(v *float64) bool {
	return NormalizeSoundSpeed(v) != nil
}

// ValuePtrString prints v to millimetre precision for log lines; artifacts
// use FormatValue.
func ValuePtrString(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f", *v)
}

// FormatValue prints v with full precision for artifacts.
func FormatValue(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "NaN"
	}
	return fmt.Sprintf("%g", *v)
}
