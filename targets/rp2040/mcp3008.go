//go:build rp2040

package main

import (
	"fmt"
	"machine"
	"sync"

	"tinygo.org/x/drivers/mcp3008"

	"ykb/core"
)

// mcp3008Bits is the width of the readings the tinygo driver returns.
const mcp3008Bits = 16

// spiBusConfig names one SPI controller and the pins routed to it.
type spiBusConfig struct {
	spi  *machine.SPI
	sck  machine.Pin
	sdo  machine.Pin
	sdi  machine.Pin
	name string
}

// mcp3008Bus is the SPI bus an external MCP3008 hangs off.
var mcp3008Bus = spiBusConfig{
	spi:  machine.SPI0,
	sck:  machine.GPIO18,
	sdo:  machine.GPIO19,
	sdi:  machine.GPIO16,
	name: "spi0c",
}

// MCP3008Driver implements core.ADCDriver on a 10-bit 8 channel SPI ADC.
type MCP3008Driver struct {
	mu  sync.Mutex
	dev *mcp3008.Device
}

// NewMCP3008Driver configures the SPI bus and chip select pin.
func NewMCP3008Driver(cs core.GPIOPin) (*MCP3008Driver, error) {
	bus := mcp3008Bus
	err := bus.spi.Configure(machine.SPIConfig{
		Frequency: 1_000_000,
		SCK:       bus.sck,
		SDO:       bus.sdo,
		SDI:       bus.sdi,
		Mode:      0,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp3008 on %s: %w", bus.name, err)
	}
	dev := mcp3008.New(bus.spi, machine.Pin(cs))
	dev.Configure()
	machine.Pin(cs).High()
	return &MCP3008Driver{dev: dev}, nil
}

// ConfigureChannel checks ch against the eight inputs of the chip.
func (d *MCP3008Driver) ConfigureChannel(ch core.ADCChannelID) error {
	if ch > 7 {
		return fmt.Errorf("mcp3008 channel %d: %w", ch, core.ErrInvalidArgument)
	}
	return nil
}

// ReadRaw performs one SPI conversion.
func (d *MCP3008Driver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.dev.Read(int(ch))
	if err != nil {
		return 0, fmt.Errorf("mcp3008 channel %d: %w", ch, err)
	}
	return core.ScaleADC(uint32(v), mcp3008Bits), nil
}
