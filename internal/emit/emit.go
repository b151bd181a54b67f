// Package emit delivers detected stair transitions to their consumers.
// Delivery is synchronous: Emit returns only after every sink has been tried.
package emit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/logic"
	"github.com/sweeney/stair-sensor/internal/mqtt"
)

// Emitter receives stair transition events.
type Emitter interface {
	Emit(event logic.Event) error
}

// Func adapts a function to Emitter.
type Func func(event logic.Event) error

// Emit calls f.
func (f Func) Emit(event logic.Event) error {
	return f(event)
}

// Sink is a named Emitter inside a Fanout.
type Sink struct {
	Name    string
	Emitter Emitter
}

// Fanout delivers each event to every sink in order.
// A failing sink does not prevent delivery to the others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout creates a Fanout over sinks.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger.Named("emit")}
}

// Add appends a sink.
func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Emit delivers event to all sinks and returns their errors joined.
func (f *Fanout) Emit(event logic.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Emitter.Emit(event); err != nil {
			f.logger.Warn("sink failed", zap.String("sink", s.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Publisher adapts an MQTT publisher to Emitter.
func Publisher(p mqtt.Publisher) Emitter {
	return Func(p.Publish)
}
