// Package status provides a thread-safe status tracker for the stair-sensor daemon.
// It is read by HTTP handlers and by heartbeat formatting.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Device          string
	PollMs          int64
	HeartbeatMs     int64
	Broker          string
	HTTPPort        string
	IMUTopic        string
	BaroBus         string
	SwitchPin       int
	RedisStream     string // empty = disabled
	RejectNonFinite bool
}

// SessionState is the runLoop's view of the current detection session.
// The zero value describes a stopped daemon.
type SessionState struct {
	Running       bool
	ID            string
	Start         time.Time
	Moving        bool
	OnStairs      bool
	AccelEWMA     float64
	PressureEWMA  float64
	Reference     float64
	AltitudeReady bool
	Counts        logic.EventCounts
}

// StateOf captures the inspectable state of s.
func StateOf(id string, s *logic.Session) SessionState {
	alt := s.Altitude()
	return SessionState{
		Running:       true,
		ID:            id,
		Start:         s.StartTime(),
		Moving:        s.Moving(),
		OnStairs:      s.OnStairs(),
		AccelEWMA:     s.Motion().EWMA(),
		PressureEWMA:  alt.EWMA(),
		Reference:     alt.Reference(),
		AltitudeReady: alt.Initialized(),
		Counts:        s.EventCountsSnapshot(),
	}
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Session           SessionState
	AccelAvailable    bool
	PressureAvailable bool
	StartTime         time.Time
	Now               time.Time
	MQTTConnected     bool
	Network           *NetworkInfo
	Config            Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the session state. Called from runLoop after every sample
// and on session start/stop.
func (t *Tracker) Update(s SessionState) {
	t.mu.Lock()
	t.snap.Session = s
	t.mu.Unlock()
}

// SetSensors records which sample sources are delivering.
func (t *Tracker) SetSensors(accel, pressure bool) {
	t.mu.Lock()
	t.snap.AccelAvailable = accel
	t.snap.PressureAvailable = pressure
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
