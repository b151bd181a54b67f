package sensor

import (
	"context"
	"sync"
)

// FakeSource is a test double whose samples are sent by the test on C.
// C is unbuffered, so a send returns only once the consumer has taken the sample.
type FakeSource struct {
	C chan Sample

	// StartError, if set, will be returned by Start.
	StartError error

	mu     sync.Mutex
	starts int
	stops  int
}

// NewFakeSource creates a FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{C: make(chan Sample)}
}

// Start returns C, or StartError.
func (f *FakeSource) Start(ctx context.Context) (<-chan Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartError != nil {
		return nil, f.StartError
	}
	f.starts++
	return f.C, nil
}

// Stop records the call.
func (f *FakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

// Calls returns how many times Start succeeded and Stop was called.
func (f *FakeSource) Calls() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}
