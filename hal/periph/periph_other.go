//go:build !linux && !tinygo

package periph

import (
	"errors"

	"ykb/core"
)

// ErrUnsupported is returned on hosts without a GPIO character device.
var ErrUnsupported = errors.New("periph: only supported on linux")

// GPIO is unavailable on this platform.
type GPIO struct{}

// NewGPIO always fails here.
func NewGPIO() (*GPIO, error) { return nil, ErrUnsupported }

func (*GPIO) ConfigureOutput(core.GPIOPin) error { return ErrUnsupported }
func (*GPIO) SetPin(core.GPIOPin, bool) error    { return ErrUnsupported }
func (*GPIO) GetPin(core.GPIOPin) (bool, error)  { return false, ErrUnsupported }

// OpenADS1115 always fails here. NewADS1115 still works on any i2c.Bus.
func OpenADS1115(string, uint16) (*ADS1115, error) { return nil, ErrUnsupported }
