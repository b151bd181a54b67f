// Package sensor provides the acceleration and pressure sample streams.
// Each Source owns one channel; the daemon's loop is the only consumer.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// ErrUnavailable reports that a sensor channel is absent. The daemon keeps
// running without it.
var ErrUnavailable = errors.New("sensor unavailable")

// Kind discriminates the sensor channel a sample came from.
type Kind int

const (
	KindAcceleration Kind = iota + 1
	KindPressure
)

func (k Kind) String() string {
	switch k {
	case KindAcceleration:
		return "acceleration"
	case KindPressure:
		return "pressure"
	default:
		return "unknown"
	}
}

// Sample is one reading tagged with its channel. Only the field matching
// Kind is meaningful.
type Sample struct {
	Kind     Kind
	Accel    logic.AccelerationSample
	Pressure logic.PressureSample
}

// AccelSample wraps an acceleration reading.
func AccelSample(a logic.AccelerationSample) Sample {
	return Sample{Kind: KindAcceleration, Accel: a}
}

// PressureReading wraps a pressure reading.
func PressureReading(p logic.PressureSample) Sample {
	return Sample{Kind: KindPressure, Pressure: p}
}

// Source is one sensor channel.
type Source interface {
	// Start registers with the underlying sensor and returns the sample
	// channel. It returns an error wrapping ErrUnavailable if the sensor is absent.
	Start(ctx context.Context) (<-chan Sample, error)

	// Stop deregisters from the sensor. The channel returned by Start
	// receives nothing afterwards.
	Stop() error
}

// Disabled returns a Source whose Start always fails with ErrUnavailable.
// It stands in for a sensor switched off in configuration.
func Disabled(name string) Source {
	return disabled(name)
}

type disabled string

func (d disabled) Start(ctx context.Context) (<-chan Sample, error) {
	return nil, fmt.Errorf("%s disabled: %w", string(d), ErrUnavailable)
}

func (d disabled) Stop() error { return nil }
