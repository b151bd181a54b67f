package mqtt

import (
	"testing"
)

func stairMsg(i int) bufferedMsg {
	return bufferedMsg{topic: "stairs/hall/events", payload: []byte{byte(i)}, qos: 1}
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10)
	if got := o.drain(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOutboxKeepsStairEventsInOrder(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 5; i++ {
		o.push(stairMsg(i))
	}

	got := o.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: got payload %d", i, got[i].payload[0])
		}
	}
	if o.len() != 0 || o.drain() != nil {
		t.Error("expected empty outbox after drain")
	}
}

func TestOutboxEvictsOldest(t *testing.T) {
	o := newOutbox(3)
	for i := 0; i < 5; i++ {
		o.push(stairMsg(i))
	}

	got := o.drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, want := range []byte{2, 3, 4} {
		if got[i].payload[0] != want {
			t.Errorf("item %d: got %d, want %d", i, got[i].payload[0], want)
		}
	}
}

func TestOutboxReportsFirstEvictionOnly(t *testing.T) {
	o := newOutbox(2)
	o.push(stairMsg(0))
	o.push(stairMsg(1))

	if !o.push(stairMsg(2)) {
		t.Error("expected first eviction to be reported")
	}
	if o.push(stairMsg(3)) {
		t.Error("expected second eviction to be silent")
	}

	o.drain()
	o.push(stairMsg(4))
	o.push(stairMsg(5))
	if !o.push(stairMsg(6)) {
		t.Error("expected eviction to be reported again after drain")
	}
}

func TestOutboxRetainedSupersedes(t *testing.T) {
	o := newOutbox(10)
	sys := "stairs/hall/system"
	o.push(bufferedMsg{topic: sys, payload: []byte("SESSION_START"), retained: true})
	o.push(stairMsg(1))
	o.push(bufferedMsg{topic: sys, payload: []byte("SESSION_STOP"), retained: true})

	got := o.drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].topic != "stairs/hall/events" {
		t.Errorf("item 0: got topic %q", got[0].topic)
	}
	if string(got[1].payload) != "SESSION_STOP" {
		t.Errorf("item 1: got %q, want SESSION_STOP", got[1].payload)
	}
}

func TestOutboxRetainedOtherTopicKept(t *testing.T) {
	o := newOutbox(10)
	o.push(bufferedMsg{topic: "a", payload: []byte("1"), retained: true})
	o.push(bufferedMsg{topic: "b", payload: []byte("2"), retained: true})
	// Non-retained messages on the same topic are not superseded.
	o.push(bufferedMsg{topic: "a", payload: []byte("3")})
	o.push(bufferedMsg{topic: "a", payload: []byte("4")})

	if o.len() != 4 {
		t.Errorf("len: got %d, want 4", o.len())
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(5)
	msg := bufferedMsg{topic: "stairs/hall/system", payload: []byte(`{"status":{}}`), qos: 1, retained: true}
	o.push(msg)

	got := o.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != msg.topic || string(m.payload) != string(msg.payload) || m.qos != 1 || !m.retained {
		t.Errorf("got %+v, want %+v", m, msg)
	}
}
