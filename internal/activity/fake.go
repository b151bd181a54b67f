package activity

import (
	"context"
	"sync"
)

// FakeRecognizer is a Recognizer for tests. Results are reported
// synchronously on a buffered channel.
type FakeRecognizer struct {
	mu      sync.Mutex
	handler Handler

	// RegisterError, if set, is reported by Register.
	RegisterError error

	// UnregisterError, if set, is reported by Unregister.
	UnregisterError error

	// Registers and Unregisters count calls.
	Registers   int
	Unregisters int
}

// NewFakeRecognizer creates a FakeRecognizer.
func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

// Register records handler unless RegisterError is set.
func (f *FakeRecognizer) Register(ctx context.Context, handler Handler) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Registers++
	ch := make(chan error, 1)
	if f.RegisterError == nil {
		f.handler = handler
	}
	ch <- f.RegisterError
	return ch
}

// Unregister drops the handler unless UnregisterError is set.
func (f *FakeRecognizer) Unregister(ctx context.Context) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unregisters++
	ch := make(chan error, 1)
	if f.UnregisterError == nil {
		f.handler = nil
	}
	ch <- f.UnregisterError
	return ch
}

// Deliver passes t to the registered handler. It returns false when
// nothing is registered.
func (f *FakeRecognizer) Deliver(t Transition) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(t)
	return true
}
