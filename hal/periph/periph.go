// Package periph drives key sensors from a Linux single board computer:
// GPIO lines through periph.io and an ADS1115 I2C converter.
package periph

import (
	"errors"
	"fmt"

	"ykb/core"
)

// ErrNoSuchPin is returned for a GPIO number the host does not know.
var ErrNoSuchPin = errors.New("periph: no such pin")

// ads1115Bits is the single-ended resolution of the ADS1115.
const ads1115Bits = 15

// ADS1115Channels is the number of single-ended inputs.
const ADS1115Channels = 4

// pinName maps a GPIO number to the periph registry name.
func pinName(pin core.GPIOPin) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// scaleSample converts a single-ended ADS1115 reading to the 10-bit range.
// Small negative readings near ground are clamped to zero.
func scaleSample(raw int32) core.ADCValue {
	if raw < 0 {
		raw = 0
	}
	return core.ScaleADC(uint32(raw), ads1115Bits)
}

func checkChannel(ch core.ADCChannelID) error {
	if ch >= ADS1115Channels {
		return fmt.Errorf("ads1115 channel %d (have %d): %w", ch, ADS1115Channels, core.ErrInvalidArgument)
	}
	return nil
}
