// Package eventlog keeps the bounded list of events shown to the user.
package eventlog

import (
	"sync"
	"time"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// Kind classifies an entry.
type Kind string

const (
	KindStair    Kind = "stair"
	KindActivity Kind = "activity"
	KindSystem   Kind = "system"
)

// Entry is one line in the event list.
type Entry struct {
	Time time.Time `json:"time"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
}

// Log is a fixed-capacity FIFO of entries. When full, the oldest entry is
// overwritten. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	buf      []Entry
	head     int // next write position
	count    int
	nextID   int
	watchers map[int]func(Entry)
}

// New creates a Log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{
		buf:      make([]Entry, capacity),
		watchers: make(map[int]func(Entry)),
	}
}

// Add appends e and notifies watchers. Watchers run synchronously on the
// caller's goroutine, outside the lock.
func (l *Log) Add(e Entry) {
	l.mu.Lock()
	l.buf[l.head] = e
	l.head = (l.head + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
	watchers := make([]func(Entry), 0, len(l.watchers))
	for _, w := range l.watchers {
		watchers = append(watchers, w)
	}
	l.mu.Unlock()

	for _, w := range watchers {
		w(e)
	}
}

// Entries returns a copy of the entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, l.count)
	start := (l.head - l.count + len(l.buf)) % len(l.buf)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Watch registers fn to be called for every new entry. The returned
// function removes the registration.
func (l *Log) Watch(fn func(Entry)) (cancel func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.watchers[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()
	}
}

// Emit records a stair transition, so a Log can serve as an event sink.
func (l *Log) Emit(event logic.Event) error {
	l.Add(Entry{Time: event.Timestamp, Kind: KindStair, Text: "stair transition detected"})
	return nil
}
