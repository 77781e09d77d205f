//go:build linux && !tinygo

package periph

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"ykb/core"
)

// GPIO implements core.GPIODriver on the periph.io pin registry.
type GPIO struct {
	mu   sync.Mutex
	pins map[core.GPIOPin]gpio.PinIO
}

var _ core.GPIODriver = (*GPIO)(nil)

// NewGPIO initializes the periph host drivers.
func NewGPIO() (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &GPIO{pins: make(map[core.GPIOPin]gpio.PinIO)}, nil
}

func (g *GPIO) pin(p core.GPIOPin) (gpio.PinIO, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if io, ok := g.pins[p]; ok {
		return io, nil
	}
	io := gpioreg.ByName(pinName(p))
	if io == nil {
		return nil, fmt.Errorf("%s: %w", pinName(p), ErrNoSuchPin)
	}
	g.pins[p] = io
	return io, nil
}

// ConfigureOutput implements core.GPIODriver. The pin starts low.
func (g *GPIO) ConfigureOutput(p core.GPIOPin) error {
	io, err := g.pin(p)
	if err != nil {
		return err
	}
	return io.Out(gpio.Low)
}

// SetPin implements core.GPIODriver.
func (g *GPIO) SetPin(p core.GPIOPin, value bool) error {
	io, err := g.pin(p)
	if err != nil {
		return err
	}
	return io.Out(gpio.Level(value))
}

// GetPin implements core.GPIODriver.
func (g *GPIO) GetPin(p core.GPIOPin) (bool, error) {
	io, err := g.pin(p)
	if err != nil {
		return false, err
	}
	return io.Read() == gpio.High, nil
}
