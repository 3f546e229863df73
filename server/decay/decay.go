// Package decay implements the tick-indexed decay arithmetic that the world
// state store builds on. Instead of storing a timestamp and ticking down a
// value every tick, every decaying quantity (wall/road hit points, energy
// drops) is represented only by the future tick at which it reaches zero.
// The current value is then derived on read, so nothing needs to be updated
// as time passes - only the stored "zero tick" ever changes, and only when
// the value itself changes.
package decay

import "math"

// ByZeroTime returns the value represented by an object whose HP/energy
// reaches zero at zero. If time has already reached or passed zero, the
// object is gone and ByZeroTime returns 0.
func ByZeroTime(time, zero uint32, rate float64) int {
	if time >= zero {
		return 0
	}
	return int(math.Ceil(float64(zero-time) * rate))
}

// ZeroTimeByChange applies delta (positive to build/heal, negative to
// damage) to an object decaying at rate, returning the new zero tick. If the
// object is already gone (time >= zero), it is treated as having just
// reached zero HP before delta is applied, so a positive delta resurrects
// it from nothing and a negative delta is a no-op. The result never falls
// below time: an object's HP clamps at zero from below, it does not go
// negative.
func ZeroTimeByChange(time, zero uint32, rate float64, delta int) uint32 {
	if time >= zero {
		zero = time
	}
	nz := int64(zero) + int64(math.Ceil(float64(delta)/rate))
	if nz <= int64(time) {
		return time
	}
	return uint32(nz)
}

// ByFillTime is the inverse of ByZeroTime: it returns the value of a
// quantity that grows toward max and reaches it at fill, rather than one
// that decays toward zero. Used for an energy source's energy regrowing
// toward its maximum.
func ByFillTime(time, fill uint32, growth float64, max int) int {
	if time >= fill {
		return max
	}
	return max - int(math.Ceil(float64(fill-time)*growth))
}
