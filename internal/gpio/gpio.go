// Package gpio reads the session switch with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the session switch.
type Reader interface {
	// Read returns true while the switch asks for a detection session.
	// The raw line is active-low: raw 0 = logical ON.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip the switch is wired to.
const DefaultChip = "gpiochip0"
