// Package serial opens the USB CDC port a keyboard half exposes its
// diagnostic link on.
package serial

import (
	"io"
	"time"
)

// Port is an open serial port.
type Port interface {
	io.ReadWriteCloser

	// Flush discards buffered input and output.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. USB CDC ignores it but some drivers insist on a value.
	Baud int

	// ReadTimeout bounds a single Read; 0 blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings used by ykb-host.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 0,
	}
}
