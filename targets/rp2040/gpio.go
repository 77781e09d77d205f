//go:build rp2040

package main

import (
	"fmt"
	"machine"
	"sync"

	"ykb/core"
)

// rpGPIOCount is the number of user GPIOs (GPIO0..GPIO29).
const rpGPIOCount = 30

// RPGPIODriver implements core.GPIODriver for the RP2040.
type RPGPIODriver struct {
	mu             sync.Mutex
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver.
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a push-pull output.
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin >= rpGPIOCount {
		return fmt.Errorf("gpio%d: %w", pin, core.ErrInvalidArgument)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = p
	return nil
}

func (d *RPGPIODriver) lookup(pin core.GPIOPin) (machine.Pin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.configuredPins[pin]
	if !ok {
		return 0, fmt.Errorf("gpio%d not configured: %w", pin, core.ErrDeviceNotReady)
	}
	return p, nil
}

// SetPin drives the pin high (true) or low (false).
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}
	p.Set(value)
	return nil
}

// GetPin reads back the pin level.
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	p, err := d.lookup(pin)
	if err != nil {
		return false, err
	}
	return p.Get(), nil
}
