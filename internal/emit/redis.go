package emit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// XAdder is the part of *redis.Client the stream sink uses.
type XAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStream appends each event to a Redis stream.
type RedisStream struct {
	client  XAdder
	stream  string
	maxLen  int64
	timeout time.Duration
}

// NewRedisStream creates a sink writing to stream. maxLen > 0 caps the
// stream approximately at that many entries.
func NewRedisStream(client XAdder, stream string, maxLen int64) *RedisStream {
	return &RedisStream{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
	}
}

// StreamValues returns the stream fields for event. Values are strings so
// consumers in any language read them the same way.
func StreamValues(event logic.Event) map[string]interface{} {
	return map[string]interface{}{
		"event":            string(event.Type),
		"key":              logic.StairTransitionsKey,
		"stair_transition": "true",
		"timestamp":        event.Timestamp.UTC().Format(time.RFC3339Nano),
		"reference_hpa":    strconv.FormatFloat(event.Reference, 'f', -1, 64),
		"ewma_hpa":         strconv.FormatFloat(event.EWMA, 'f', -1, 64),
		"delta_hpa":        strconv.FormatFloat(event.Delta, 'f', -1, 64),
	}
}

// Emit runs XADD for event.
func (r *RedisStream) Emit(event logic.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: StreamValues(event),
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
