//go:build !linux

package gpio

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for the session switch off Linux. Run without
// --switch-pin to get a single session for the daemon's lifetime instead.
var ErrUnsupported = errors.New("gpio: switch requires the Linux character device")

// RealReader is a placeholder so the command builds on other platforms.
type RealReader struct{}

func NewRealReader(chip string, pin int) (*RealReader, error) {
	return nil, fmt.Errorf("switch pin %d on %s: %w", pin, chip, ErrUnsupported)
}

func (r *RealReader) Read() (bool, error) { return false, ErrUnsupported }

func (r *RealReader) Close() error { return nil }
