// Package satmath provides the saturating counter, weight, and vote
// arithmetic shared by the dense and sparse Tsetlin Machine engines. Every
// helper clips at its bound instead of wrapping, and the bounds are always
// inclusive.
package satmath

import "math"

// IncCounter returns v+1, clamped at max.
func IncCounter(v, max int8) int8 {
	if v >= max {
		return max
	}
	return v + 1
}

// DecCounter returns v-1, clamped at min.
func DecCounter(v, min int8) int8 {
	if v <= min {
		return min
	}
	return v - 1
}

// IncWeightMagnitude increments the magnitude of w by one, preserving its
// sign, saturating at the int16 limits.
func IncWeightMagnitude(w int16) int16 {
	if w >= 0 {
		if w == math.MaxInt16 {
			return w
		}
		return w + 1
	}
	if w == math.MinInt16 {
		return w
	}
	return w - 1
}

// DecWeightTowardZero moves w one step toward zero.
func DecWeightTowardZero(w int16) int16 {
	switch {
	case w > 0:
		return w - 1
	case w < 0:
		return w + 1
	default:
		return 0
	}
}

// ClipVote symmetrically clips v into [-bound, bound]. bound must be >= 0.
func ClipVote(v, bound int32) int32 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
