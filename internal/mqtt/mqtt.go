// Package mqtt provides MQTT publishing and subscribing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// TopicRoot prefixes every topic. Topics are scoped per device so events
// are only seen by consumers of this device.
const TopicRoot = "activity"

// EventTopic is the topic for stair transition events.
func EventTopic(device string) string {
	return TopicRoot + "/" + device + "/stairs/events"
}

// SystemTopic is the topic for system lifecycle events.
func SystemTopic(device string) string {
	return TopicRoot + "/" + device + "/system"
}

// TransitionTopic is the topic the external activity classifier publishes to.
func TransitionTopic(device string) string {
	return TopicRoot + "/" + device + "/transitions"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a stair transition event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers messages from the broker.
type Subscriber interface {
	// Subscribe registers handler for topic. The handler runs on the client's
	// delivery goroutine and must not block.
	Subscribe(topic string, handler func(payload []byte)) error

	// Unsubscribe removes the subscription for topic.
	Unsubscribe(topic string) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "SESSION_START"
	Reason     string // e.g., "SIGTERM", "pressure" (shutdown, sensor notices)
	Session    string // session ID for session events
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Stair StairPayload `json:"stair"`
}

// StairPayload contains the stair event details. StairTransition is always
// true and Key always logic.StairTransitionsKey; consumers match on them.
type StairPayload struct {
	Timestamp       string  `json:"timestamp"`
	Event           string  `json:"event"`
	Key             string  `json:"key"`
	StairTransition bool    `json:"stair_transition"`
	Reference       float64 `json:"reference_hpa"`
	EWMA            float64 `json:"ewma_hpa"`
	Delta           float64 `json:"delta_hpa"`
}

// FormatPayload creates the JSON payload for a stair event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Stair: StairPayload{
			Timestamp:       event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:           string(event.Type),
			Key:             logic.StairTransitionsKey,
			StairTransition: true,
			Reference:       event.Reference,
			EWMA:            event.EWMA,
			Delta:           event.Delta,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Session   string `json:"session,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Session:   event.Session,
		},
	}
	return json.Marshal(payload)
}
