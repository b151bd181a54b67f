package sensor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// pressureDevice is the part of bmxx80.Dev the source uses.
type pressureDevice interface {
	Sense(e *physic.Env) error
	Halt() error
}

type openFunc func(bus string, addr uint16) (pressureDevice, io.Closer, error)

// BarometerSource polls a BMP280/BME280 over I²C.
type BarometerSource struct {
	bus      string
	addr     uint16
	interval time.Duration
	logger   *zap.Logger
	open     openFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	dev    pressureDevice
	closer io.Closer
}

// NewBarometerSource creates a source for the sensor at addr on bus.
// An empty bus name selects the first I²C bus.
func NewBarometerSource(bus string, addr uint16, interval time.Duration, logger *zap.Logger) *BarometerSource {
	return &BarometerSource{
		bus:      bus,
		addr:     addr,
		interval: interval,
		logger:   logger.Named("barometer"),
		open:     openBMX,
	}
}

func openBMX(bus string, addr uint16) (pressureDevice, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", bus, err)
	}
	dev, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("bmxx80 init at %#x: %w", addr, err)
	}
	return dev, b, nil
}

// Start opens the device and begins polling.
func (s *BarometerSource) Start(ctx context.Context) (<-chan Sample, error) {
	dev, closer, err := s.open(s.bus, s.addr)
	if err != nil {
		return nil, fmt.Errorf("barometer: %w: %w", ErrUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Sample, 16)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.dev = dev
	s.closer = closer
	s.mu.Unlock()

	go s.poll(ctx, dev, ch, done)
	s.logger.Info("polling", zap.Duration("interval", s.interval), zap.Uint16("addr", s.addr))
	return ch, nil
}

func (s *BarometerSource) poll(ctx context.Context, dev pressureDevice, ch chan<- Sample, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			var e physic.Env
			if err := dev.Sense(&e); err != nil {
				if !failing {
					s.logger.Warn("sense failed", zap.Error(err))
					failing = true
				}
				continue
			}
			failing = false

			sample := PressureReading(logic.PressureSample{Pressure: toHPa(e.Pressure), Time: t})
			select {
			case ch <- sample:
			case <-ctx.Done():
				return
			default:
				s.logger.Debug("consumer behind, dropping pressure sample")
			}
		}
	}
}

func toHPa(p physic.Pressure) float64 {
	return float64(p) / float64(physic.Pascal) / 100
}

// Stop ends polling and releases the device.
func (s *BarometerSource) Stop() error {
	s.mu.Lock()
	cancel, done, dev, closer := s.cancel, s.done, s.dev, s.closer
	s.cancel, s.done, s.dev, s.closer = nil, nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	var errs []error
	if err := dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt: %w", err))
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("barometer: %v", errs)
	}
	return nil
}
