// Package logic contains the pure stair-detection state machine.
// This package has NO external dependencies (no sensors, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time fields on samples.
package logic

import "time"

// Fixed filter constants. Changing any of these changes observable behavior.
const (
	AccelAlpha        = 0.5
	AccelThreshold    = 0.1
	PressureAlpha     = 0.5
	PressureThreshold = 0.2
)

// StairTransitionsKey identifies the stair event kind on outbound channels.
const StairTransitionsKey = "STAIR_TRANSITIONS"

// EventType represents a detected transition.
type EventType string

const (
	EventStairTransition EventType = "STAIR_TRANSITION"
)

// AccelerationSample is one linear-acceleration reading (gravity excluded).
type AccelerationSample struct {
	X, Y, Z float64
	Time    time.Time
}

// PressureSample is one barometric pressure reading.
type PressureSample struct {
	Pressure float64
	Time     time.Time
}

// Event is a stair transition to be emitted.
// Only its occurrence is meaningful; the pressure fields are diagnostics.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Reference float64 // reference pressure the excursion was measured against
	EWMA      float64 // smoothed pressure at detection, also the new reference
	Delta     float64
}

// Config controls optional behavior on top of the fixed algorithm.
type Config struct {
	// RejectNonFinite drops NaN and ±Inf samples before filtering.
	// Off by default: such values propagate into the filters unchanged.
	RejectNonFinite bool
}

// EventCounts tracks session activity since the session started.
type EventCounts struct {
	StairTransitions int
	MotionStarts     int
	MotionStops      int
	AccelSamples     int
	PressureSamples  int
	Rejected         int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
