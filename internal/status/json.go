package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device"`
	Session       SessionJSON  `json:"session"`
	Sensors       SensorsJSON  `json:"sensors"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SessionJSON describes the detection session. Filter values are omitted
// until they hold a finite number.
type SessionJSON struct {
	Running      bool     `json:"running"`
	ID           string   `json:"id,omitempty"`
	StartTime    string   `json:"start_time,omitempty"`
	Moving       bool     `json:"moving"`
	OnStairs     bool     `json:"on_stairs"`
	AccelEWMA    *float64 `json:"accel_ewma,omitempty"`
	PressureEWMA *float64 `json:"pressure_ewma_hpa,omitempty"`
	Reference    *float64 `json:"reference_hpa,omitempty"`
}

// SensorsJSON reports sample source availability.
type SensorsJSON struct {
	Acceleration bool `json:"acceleration"`
	Pressure     bool `json:"pressure"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	StairTransitions int `json:"stair_transitions"`
	MotionStarts     int `json:"motion_starts"`
	MotionStops      int `json:"motion_stops"`
	AccelSamples     int `json:"accel_samples"`
	PressureSamples  int `json:"pressure_samples"`
	Rejected         int `json:"rejected"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Broker          string `json:"broker"`
	HTTPPort        string `json:"http_port"`
	IMUTopic        string `json:"imu_topic"`
	BaroBus         string `json:"baro_bus"`
	SwitchPin       int    `json:"switch_pin"`
	RedisStream     string `json:"redis_stream,omitempty"`
	RejectNonFinite bool   `json:"reject_non_finite"`
}

// number returns a pointer to v, or nil when v cannot be encoded.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func buildSession(s SessionState) SessionJSON {
	out := SessionJSON{
		Running:  s.Running,
		ID:       s.ID,
		Moving:   s.Moving,
		OnStairs: s.OnStairs,
	}
	if !s.Running {
		return out
	}
	out.StartTime = s.Start.UTC().Format(time.RFC3339)
	out.AccelEWMA = number(s.AccelEWMA)
	if s.AltitudeReady {
		out.PressureEWMA = number(s.PressureEWMA)
		out.Reference = number(s.Reference)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Session.Counts
	return StatusInner{
		Device:        snap.Config.Device,
		Session:       buildSession(snap.Session),
		Sensors:       SensorsJSON{Acceleration: snap.AccelAvailable, Pressure: snap.PressureAvailable},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			StairTransitions: c.StairTransitions,
			MotionStarts:     c.MotionStarts,
			MotionStops:      c.MotionStops,
			AccelSamples:     c.AccelSamples,
			PressureSamples:  c.PressureSamples,
			Rejected:         c.Rejected,
		},
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPPort:        snap.Config.HTTPPort,
			IMUTopic:        snap.Config.IMUTopic,
			BaroBus:         snap.Config.BaroBus,
			SwitchPin:       snap.Config.SwitchPin,
			RedisStream:     snap.Config.RedisStream,
			RejectNonFinite: snap.Config.RejectNonFinite,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
