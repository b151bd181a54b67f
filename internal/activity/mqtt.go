package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/mqtt"
)

// MQTTRecognizer receives transitions published by the classifier as
// {"activity":"WALKING","transition":"ENTER"}.
type MQTTRecognizer struct {
	sub       mqtt.Subscriber
	topic     string
	permitted bool
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	registered bool
}

// NewMQTTRecognizer creates a recognizer on topic. When permitted is false
// every Register fails with ErrPermissionDenied.
func NewMQTTRecognizer(sub mqtt.Subscriber, topic string, permitted bool, logger *zap.Logger) *MQTTRecognizer {
	return &MQTTRecognizer{
		sub:       sub,
		topic:     topic,
		permitted: permitted,
		logger:    logger.Named("activity"),
		now:       time.Now,
	}
}

type transitionMessage struct {
	Activity   string `json:"activity"`
	Transition string `json:"transition"`
}

// ParseTransition decodes a classifier message stamped with at.
func ParseTransition(payload []byte, at time.Time) (Transition, error) {
	var m transitionMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return Transition{}, fmt.Errorf("decode transition: %w", err)
	}
	t := Transition{Activity: Activity(m.Activity), Type: TransitionType(m.Transition), Time: at}
	if !t.Valid() {
		return Transition{}, fmt.Errorf("unknown transition %q %q", m.Activity, m.Transition)
	}
	return t, nil
}

// Register subscribes handler to the transition topic.
func (r *MQTTRecognizer) Register(ctx context.Context, handler Handler) <-chan error {
	return result(func() error {
		if !r.permitted {
			return ErrPermissionDenied
		}
		if r.sub == nil {
			return errors.New("no mqtt subscriber")
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.sub.Subscribe(r.topic, func(payload []byte) {
			t, err := ParseTransition(payload, r.now())
			if err != nil {
				r.logger.Warn("dropping transition", zap.Error(err))
				return
			}
			handler(t)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", r.topic, err)
		}

		r.mu.Lock()
		r.registered = true
		r.mu.Unlock()
		return nil
	})
}

// Unregister removes the subscription.
func (r *MQTTRecognizer) Unregister(ctx context.Context) <-chan error {
	return result(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.registered {
			return errors.New("activity recognizer not registered")
		}
		if err := r.sub.Unsubscribe(r.topic); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", r.topic, err)
		}
		r.registered = false
		return nil
	})
}
