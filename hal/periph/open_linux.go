//go:build linux && !tinygo

package periph

import (
	"fmt"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenADS1115 opens the I2C bus (empty name means the first one) and binds
// the converter at addr. Close releases the bus.
func OpenADS1115(busName string, addr uint16) (*ADS1115, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	a := NewADS1115(bus, addr)
	a.closer = bus.Close
	return a, nil
}
