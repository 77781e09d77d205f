// Package mux drives analog multiplexers that route one of several key
// sensors onto a shared ADC channel.
package mux

import (
	"time"

	"ykb/core"
)

// Mux is a hardware channel selector.
//
// Channels are logical and 0-based. Select and SelectNext wait for the
// settle interval before returning, so the caller may sample right away.
type Mux interface {
	// Select routes logical channel ch to the output.
	Select(ch uint16) error

	// SelectNext selects (current+1) mod ChannelAmount().
	SelectNext() error

	// Enable connects the output. Enabling an enabled mux is a no-op.
	Enable() error

	// Disable disconnects the output, parking on the idle channel first
	// when one is configured. Disabling a disabled mux is a no-op.
	Disable() error

	IsEnabled() bool
	CurrentChannel() uint16
	ChannelAmount() uint16
}

// MaxSelectLines bounds the number of selector GPIOs per mux.
const MaxSelectLines = 8

// DefaultSettle is the settle interval used when a config leaves it unset.
const DefaultSettle = 5 * time.Microsecond

// Config describes a GPIO-driven multiplexer such as a CD74HC4067.
type Config struct {
	// Name identifies the mux in log messages.
	Name string

	// Select lines, least significant bit first.
	Select []core.GPIOLine

	// Enable is the optional enable line. Without one the mux is always on.
	Enable *core.GPIOLine

	// IdleChannel is the optional channel the mux parks on while disabled.
	IdleChannel *uint16

	// Channels is the number of usable logical channels.
	// Zero means 1 << len(Select).
	Channels uint16

	// ChannelMap maps logical channel -> raw select pattern.
	// Nil means the pattern is the channel number itself.
	ChannelMap []uint32

	// Settle is waited after every selection change.
	Settle time.Duration
}

// channelAmount returns the effective number of logical channels.
func (c *Config) channelAmount() uint16 {
	if c.Channels != 0 {
		return c.Channels
	}
	return uint16(1) << len(c.Select)
}
