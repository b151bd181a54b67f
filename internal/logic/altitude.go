package logic

import "math"

// AltitudeFilter turns smoothed pressure excursions into stair events.
// The reference is only moved on detection, and only while moving, so it can
// be stale after a pause in motion.
type AltitudeFilter struct {
	initialized bool
	ewma        float64
	reference   float64
	onStairs    bool
}

// OnPressure folds one sample into the filter. moving is the motion filter's
// current state. It returns the event and true when a transition is detected.
func (f *AltitudeFilter) OnPressure(s PressureSample, moving bool) (Event, bool) {
	if !f.initialized {
		f.initialized = true
		f.reference = s.Pressure
		f.ewma = s.Pressure
	} else {
		f.ewma = PressureAlpha*s.Pressure + (1-PressureAlpha)*f.ewma
	}

	if !moving {
		return Event{}, false
	}

	delta := math.Abs(f.reference - f.ewma)
	if delta > PressureThreshold {
		ev := Event{
			Timestamp: s.Time,
			Type:      EventStairTransition,
			Reference: f.reference,
			EWMA:      f.ewma,
			Delta:     delta,
		}
		f.onStairs = true
		f.reference = f.ewma
		return ev, true
	}

	f.onStairs = false
	return Event{}, false
}

// Initialized reports whether a first pressure sample has been seen.
func (f *AltitudeFilter) Initialized() bool {
	return f.initialized
}

// OnStairs reports whether the last gated sample detected a transition.
func (f *AltitudeFilter) OnStairs() bool {
	return f.onStairs
}

// EWMA returns the smoothed pressure.
func (f *AltitudeFilter) EWMA() float64 {
	return f.ewma
}

// Reference returns the baseline pressure the current excursion is measured against.
func (f *AltitudeFilter) Reference() float64 {
	return f.reference
}
