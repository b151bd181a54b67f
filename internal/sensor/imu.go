package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/logic"
	"github.com/sweeney/stair-sensor/internal/mqtt"
)

// IMUSource receives linear acceleration published by an IMU producer.
// Messages are JSON objects {"ax": .., "ay": .., "az": ..} in m/s² with
// gravity already removed.
type IMUSource struct {
	sub    mqtt.Subscriber
	topic  string
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	ch      chan Sample
	dropped bool
}

type imuPayload struct {
	Ax *float64 `json:"ax"`
	Ay *float64 `json:"ay"`
	Az *float64 `json:"az"`
}

// NewIMUSource creates a source subscribed to topic on sub.
// A nil sub makes the source unavailable.
func NewIMUSource(sub mqtt.Subscriber, topic string, logger *zap.Logger) *IMUSource {
	return &IMUSource{
		sub:    sub,
		topic:  topic,
		logger: logger.Named("imu"),
		now:    time.Now,
	}
}

// Start subscribes to the IMU topic.
func (s *IMUSource) Start(ctx context.Context) (<-chan Sample, error) {
	if s.sub == nil {
		return nil, fmt.Errorf("imu: %w", ErrUnavailable)
	}

	ch := make(chan Sample, 64)
	s.mu.Lock()
	s.ch = ch
	s.dropped = false
	s.mu.Unlock()

	if err := s.sub.Subscribe(s.topic, s.handle); err != nil {
		s.mu.Lock()
		s.ch = nil
		s.mu.Unlock()
		return nil, fmt.Errorf("imu: %w: subscribe %s: %w", ErrUnavailable, s.topic, err)
	}
	s.logger.Info("subscribed", zap.String("topic", s.topic))
	return ch, nil
}

func (s *IMUSource) handle(payload []byte) {
	sample, err := parseIMU(payload, s.now())
	if err != nil {
		s.logger.Debug("ignoring malformed imu message", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return
	}
	select {
	case s.ch <- AccelSample(sample):
	default:
		if !s.dropped {
			s.logger.Warn("consumer behind, dropping acceleration samples")
			s.dropped = true
		}
	}
}

func parseIMU(payload []byte, at time.Time) (logic.AccelerationSample, error) {
	var p imuPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return logic.AccelerationSample{}, err
	}
	if p.Ax == nil || p.Ay == nil || p.Az == nil {
		return logic.AccelerationSample{}, errors.New("missing axis")
	}
	return logic.AccelerationSample{X: *p.Ax, Y: *p.Ay, Z: *p.Az, Time: at}, nil
}

// Stop unsubscribes. Late deliveries are discarded.
func (s *IMUSource) Stop() error {
	s.mu.Lock()
	started := s.ch != nil
	s.ch = nil
	s.mu.Unlock()

	if !started {
		return nil
	}
	if err := s.sub.Unsubscribe(s.topic); err != nil {
		return fmt.Errorf("imu: unsubscribe %s: %w", s.topic, err)
	}
	return nil
}
