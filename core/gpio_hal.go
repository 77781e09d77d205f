package core

import "fmt"

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output driven low.
	// Returns error if pin is invalid or its port is not ready.
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// Global singleton used by target code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// GPIOLine is an output pin with a logical polarity.
// Active means "asserted": high for normal lines, low for ActiveLow lines.
type GPIOLine struct {
	Pin       GPIOPin `yaml:"pin"`
	ActiveLow bool    `yaml:"active_low"`
}

// String returns a short description used in log messages.
func (l GPIOLine) String() string {
	if l.ActiveLow {
		return fmt.Sprintf("gpio%d(active-low)", l.Pin)
	}
	return fmt.Sprintf("gpio%d", l.Pin)
}

// Level returns the physical pin level for the logical state.
func (l GPIOLine) Level(active bool) bool {
	return active != l.ActiveLow
}

// ConfigureInactive configures the line as an output and drives it to
// its inactive level.
func (l GPIOLine) ConfigureInactive(d GPIODriver) error {
	if err := d.ConfigureOutput(l.Pin); err != nil {
		return err
	}
	return d.SetPin(l.Pin, l.Level(false))
}

// Set drives the line to the given logical state.
func (l GPIOLine) Set(d GPIODriver, active bool) error {
	return d.SetPin(l.Pin, l.Level(active))
}

// Active reads the pin back and reports whether the line is asserted.
func (l GPIOLine) Active(d GPIODriver) (bool, error) {
	v, err := d.GetPin(l.Pin)
	if err != nil {
		return false, err
	}
	return v == l.Level(true), nil
}
