package logic

import (
	"math"
	"time"
)

// Session owns the filter state for one detection session.
// A new Session starts with moving=false and an uninitialized altitude filter;
// nothing carries over from a previous session.
// Not safe for concurrent use: both handlers must run on one goroutine.
type Session struct {
	cfg           Config
	motion        MotionFilter
	altitude      AltitudeFilter
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
	lastAccel     time.Time
	lastPressure  time.Time
}

// NewSession creates a detection session with fresh filter state.
// The startTime is used for calculating uptime in heartbeat events.
func NewSession(cfg Config, startTime time.Time) *Session {
	return &Session{
		cfg:           cfg,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// ProcessAcceleration routes one acceleration sample to the motion filter.
// It returns true when the moving state changed.
func (s *Session) ProcessAcceleration(sample AccelerationSample) bool {
	if s.cfg.RejectNonFinite && !(finite(sample.X) && finite(sample.Y) && finite(sample.Z)) {
		s.eventCounts.Rejected++
		return false
	}
	s.eventCounts.AccelSamples++
	s.lastAccel = sample.Time

	changed := s.motion.OnAcceleration(sample)
	if changed {
		if s.motion.Moving() {
			s.eventCounts.MotionStarts++
		} else {
			s.eventCounts.MotionStops++
		}
	}
	return changed
}

// ProcessPressure routes one pressure sample to the altitude filter, gated by
// the current motion state. At most one event is returned per sample.
func (s *Session) ProcessPressure(sample PressureSample) (Event, bool) {
	if s.cfg.RejectNonFinite && !finite(sample.Pressure) {
		s.eventCounts.Rejected++
		return Event{}, false
	}
	s.eventCounts.PressureSamples++
	s.lastPressure = sample.Time

	ev, ok := s.altitude.OnPressure(sample, s.motion.Moving())
	if ok {
		s.eventCounts.StairTransitions++
	}
	return ev, ok
}

// Moving returns the motion filter's state.
func (s *Session) Moving() bool {
	return s.motion.Moving()
}

// OnStairs returns the altitude filter's last gated decision.
func (s *Session) OnStairs() bool {
	return s.altitude.OnStairs()
}

// Motion exposes the motion filter for inspection.
func (s *Session) Motion() *MotionFilter {
	return &s.motion
}

// Altitude exposes the altitude filter for inspection.
func (s *Session) Altitude() *AltitudeFilter {
	return &s.altitude
}

// StartTime returns when the session was started.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// LastSampleTimes returns the arrival times of the latest samples per channel.
// A zero time means the channel has produced nothing yet.
func (s *Session) LastSampleTimes() (accel, pressure time.Time) {
	return s.lastAccel, s.lastPressure
}

// EventCountsSnapshot returns a copy of the session counters.
func (s *Session) EventCountsSnapshot() EventCounts {
	return s.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or session start). Returns nil if the interval has not
// elapsed, or if interval is <= 0 (disabled).
func (s *Session) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(s.lastHeartbeat) < interval {
		return nil
	}

	s.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(s.startTime),
		Counts:    s.eventCounts,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
