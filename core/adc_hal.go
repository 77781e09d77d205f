package core

// ADCChannelID identifies a logical ADC channel.
// Targets map it onto their own channel numbering (pin index, mux input, ...).
type ADCChannelID uint16

// ADCValue is the raw ADC reading as seen by the scan engine.
// Convention here: 10-bit value (0..ADCMax), whatever the hardware resolution.
type ADCValue uint16

// ADCMax is the largest value a key sensor reports.
const ADCMax ADCValue = 1023

// ADCDriver is the abstract ADC interface that core code uses.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	// An error means the converter or channel is not ready for sampling.
	ConfigureChannel(ch ADCChannelID) error

	// ReadRaw performs a one-shot sample from the given channel.
	ReadRaw(ch ADCChannelID) (ADCValue, error)
}

// Global singleton used by target code.
var adcDriver ADCDriver

// SetADCDriver is called by target-specific code to register its driver.
func SetADCDriver(d ADCDriver) {
	adcDriver = d
}

// MustADC returns the configured driver or panics if missing.
func MustADC() ADCDriver {
	if adcDriver == nil {
		panic("ADC driver not configured")
	}
	return adcDriver
}

// ScaleADC converts a reading of the given bit width to the 10-bit
// range used by thresholds.
func ScaleADC(raw uint32, bits uint8) ADCValue {
	switch {
	case bits > 10:
		raw >>= bits - 10
	case bits < 10:
		raw <<= 10 - bits
	}
	if raw > uint32(ADCMax) {
		raw = uint32(ADCMax)
	}
	return ADCValue(raw)
}
