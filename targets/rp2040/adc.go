//go:build rp2040

package main

import (
	"fmt"
	"machine"
	"sync"

	"ykb/core"
)

// rpADCBits is the resolution machine.ADC.Get reports in.
const rpADCBits = 16

// RPADCDriver implements core.ADCDriver on the RP2040 SAR ADC.
// Channels 0..3 map to ADC0..ADC3 (GPIO26..GPIO29).
type RPADCDriver struct {
	mu       sync.Mutex
	channels map[core.ADCChannelID]*machine.ADC
}

// NewRPADCDriver initializes the ADC block.
func NewRPADCDriver() *RPADCDriver {
	machine.InitADC()
	return &RPADCDriver{channels: make(map[core.ADCChannelID]*machine.ADC)}
}

// ConfigureChannel sets up the pin of channel ch.
func (d *RPADCDriver) ConfigureChannel(ch core.ADCChannelID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.channels[ch]; ok {
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	default:
		return fmt.Errorf("adc channel %d: %w", ch, core.ErrInvalidArgument)
	}

	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = &adc
	return nil
}

// ReadRaw samples channel ch and scales it to 10 bits. The RP2040 has a
// single converter so reads from different scan goroutines are serialized.
func (d *RPADCDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	adc, ok := d.channels[ch]
	if !ok {
		return 0, fmt.Errorf("adc channel %d not configured: %w", ch, core.ErrDeviceNotReady)
	}
	return core.ScaleADC(uint32(adc.Get()), rpADCBits), nil
}
