// Package activity receives coarse activity transitions (still, walking,
// running) from an external classifier. The stair detector does not consume
// them; they are shown alongside stair events.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied is reported when activity recognition is not permitted.
var ErrPermissionDenied = errors.New("activity recognition permission denied")

// Activity is a recognized activity.
type Activity string

const (
	Still   Activity = "STILL"
	Walking Activity = "WALKING"
	Running Activity = "RUNNING"
)

// Activities lists every activity the recognizer reports.
var Activities = []Activity{Still, Walking, Running}

// TransitionType says whether an activity began or ended.
type TransitionType string

const (
	Enter TransitionType = "ENTER"
	Exit  TransitionType = "EXIT"
)

// Transition is one activity change.
type Transition struct {
	Activity Activity
	Type     TransitionType
	Time     time.Time
}

// String renders the transition for the event list, e.g. "WALKING ENTER".
func (t Transition) String() string {
	return fmt.Sprintf("%s %s", t.Activity, t.Type)
}

// Valid reports whether both fields hold known values.
func (t Transition) Valid() bool {
	known := false
	for _, a := range Activities {
		if t.Activity == a {
			known = true
			break
		}
	}
	return known && (t.Type == Enter || t.Type == Exit)
}

// Handler receives transitions. It runs on the recognizer's delivery
// goroutine and must not block.
type Handler func(Transition)

// Recognizer registers for activity transitions.
//
// Register and Unregister return immediately. The returned channel yields
// exactly one value once the request completes: nil on success, the
// failure otherwise. Failed requests are not retried.
type Recognizer interface {
	Register(ctx context.Context, handler Handler) <-chan error
	Unregister(ctx context.Context) <-chan error
}

// result runs fn on a new goroutine and reports its outcome once.
func result(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- fn()
	}()
	return ch
}
