package logic

import "math"

// MotionFilter derives a boolean moving state from acceleration magnitude.
// There is no hysteresis: the state may flip on every sample.
type MotionFilter struct {
	ewma   float64
	moving bool
}

// OnAcceleration folds one sample into the filter and reports whether the
// moving state changed.
func (f *MotionFilter) OnAcceleration(s AccelerationSample) bool {
	// Magnitude is quantized to an integer before smoothing.
	m := math.Round(math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z))
	f.ewma = AccelAlpha*m + (1-AccelAlpha)*f.ewma

	prev := f.moving
	if f.ewma > AccelThreshold {
		f.moving = true
	} else {
		f.moving = false
	}
	return prev != f.moving
}

// Moving reports the current motion state.
func (f *MotionFilter) Moving() bool {
	return f.moving
}

// EWMA returns the smoothed acceleration magnitude.
func (f *MotionFilter) EWMA() float64 {
	return f.ewma
}
