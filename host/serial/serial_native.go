//go:build !tinygo

package serial

import (
	"errors"
	"fmt"

	"github.com/tarm/serial"
)

// nativePort wraps github.com/tarm/serial.
type nativePort struct {
	*serial.Port
	device string
}

// Open opens the port described by cfg.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("serial: no device")
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &nativePort{Port: p, device: cfg.Device}, nil
}

// String returns the device path.
func (p *nativePort) String() string { return p.device }
