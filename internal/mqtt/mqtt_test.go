package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/stair-sensor/internal/logic"
)

func testEvent() logic.Event {
	return logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventStairTransition,
		Reference: 1000,
		EWMA:      1000.25,
		Delta:     0.25,
	}
}

func TestTopics(t *testing.T) {
	if got := EventTopic("hall"); got != "activity/hall/stairs/events" {
		t.Errorf("EventTopic: got %q", got)
	}
	if got := SystemTopic("hall"); got != "activity/hall/system" {
		t.Errorf("SystemTopic: got %q", got)
	}
	if got := TransitionTopic("hall"); got != "activity/hall/transitions" {
		t.Errorf("TransitionTopic: got %q", got)
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(testEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Stair.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Stair.Timestamp)
	}
	if parsed.Stair.Event != "STAIR_TRANSITION" {
		t.Errorf("unexpected event: %s", parsed.Stair.Event)
	}
	if parsed.Stair.Key != logic.StairTransitionsKey {
		t.Errorf("unexpected key: %s", parsed.Stair.Key)
	}
	if !parsed.Stair.StairTransition {
		t.Error("stair_transition flag must be true")
	}
	if parsed.Stair.EWMA != 1000.25 || parsed.Stair.Reference != 1000 || parsed.Stair.Delta != 0.25 {
		t.Errorf("unexpected pressure fields: %+v", parsed.Stair)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	payload, err := FormatPayload(testEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"stair":{"timestamp":"2026-02-02T22:18:12Z","event":"STAIR_TRANSITION","key":"STAIR_TRANSITIONS","stair_transition":true,"reference_hpa":1000,"ewma_hpa":1000.25,"delta_hpa":0.25}}`
	if string(payload) != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	ev := testEvent()
	ev.Timestamp = time.Date(2026, 2, 3, 7, 18, 12, 500_000_000, loc)

	payload, _ := FormatPayload(ev)
	var parsed Payload
	json.Unmarshal(payload, &parsed)

	if parsed.Stair.Timestamp != "2026-02-02T22:18:12.5Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Stair.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 0, 0, 0, time.UTC),
		Event:     "SESSION_START",
		Session:   "0b5c",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:00:00Z","event":"SESSION_START","session":"0b5c"}}`
	if string(payload) != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatSystemPayloadWithReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	want := `{"system":{"timestamp":"2026-02-02T22:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.Events))
	}
	if f.Events[0].Type != logic.EventStairTransition {
		t.Errorf("unexpected event type: %s", f.Events[0].Type)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	if err := f.Publish(testEvent()); err == nil {
		t.Error("expected error")
	}
	if len(f.Events) != 0 {
		t.Errorf("failed publish must not be recorded, got %d", len(f.Events))
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.PublishSystem(SystemEvent{Event: "SHUTDOWN", Reason: "SIGINT"})

	names := f.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Errorf("unexpected system events: %v", names)
	}

	f.PublishSystemError = errors.New("nope")
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(testEvent())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 || len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected recorded events to be cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected flags to be cleared")
	}
}

func TestFakeSubscriber(t *testing.T) {
	f := NewFakeSubscriber()

	var got []byte
	if err := f.Subscribe("a/b", func(p []byte) { got = p }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Subscribed("a/b") {
		t.Error("expected subscription")
	}
	if !f.Deliver("a/b", []byte("x")) {
		t.Error("expected delivery")
	}
	if string(got) != "x" {
		t.Errorf("handler got %q", got)
	}
	if f.Deliver("c/d", nil) {
		t.Error("delivery to unknown topic should fail")
	}

	if err := f.Unsubscribe("a/b"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := f.Unsubscribe("a/b"); err == nil {
		t.Error("expected error unsubscribing twice")
	}
}

var (
	_ Publisher        = (*FakePublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
	_ Subscriber       = (*FakeSubscriber)(nil)
	_ Publisher        = (*RealClient)(nil)
	_ Subscriber       = (*RealClient)(nil)
	_ ConnectionStatus = (*RealClient)(nil)
)
