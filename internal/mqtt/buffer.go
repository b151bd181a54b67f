package mqtt

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable.
// A retained message supersedes any earlier retained message on the same
// topic, since the broker would only keep the last one. Stair events are
// never retained and are kept in order until capacity forces the oldest out.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // messages evicted since the last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

// push queues msg. It returns true on the first eviction since the last drain.
func (o *outbox) push(msg bufferedMsg) bool {
	if msg.retained {
		kept := o.msgs[:0]
		for _, m := range o.msgs {
			if !(m.retained && m.topic == msg.topic) {
				kept = append(kept, m)
			}
		}
		o.msgs = kept
	}

	evicted := false
	if len(o.msgs) == o.capacity {
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
		o.dropped++
		evicted = o.dropped == 1
	}
	o.msgs = append(o.msgs, msg)
	return evicted
}

// drain returns the queued messages oldest first and empties the outbox.
func (o *outbox) drain() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := make([]bufferedMsg, len(o.msgs))
	copy(out, o.msgs)
	o.msgs = o.msgs[:0]
	o.dropped = 0
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
