//go:build !tinygo

package periph

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"ykb/core"
)

// ADS1115 registers and config fields.
const (
	regConversion = 0x00
	regConfig     = 0x01

	cfgStart      = 1 << 15 // OS: start a single conversion / conversion done
	cfgMuxSingle  = 4 << 12 // AINx against GND, x added at bit 12
	cfgPGA4096    = 1 << 9  // +-4.096 V full scale
	cfgSingleShot = 1 << 8
	cfgRate860    = 7 << 5
	cfgCompOff    = 3

	// One conversion at 860 SPS takes a little over 1.1 ms.
	conversionWait = 1200 * time.Microsecond
	conversionPoll = 5
)

// ADS1115 implements core.ADCDriver on a TI ADS1115 in single-shot mode.
type ADS1115 struct {
	dev    i2c.Dev
	closer func() error
	sleep  func(time.Duration)

	mu         sync.Mutex
	configured [ADS1115Channels]bool
}

var _ core.ADCDriver = (*ADS1115)(nil)

// NewADS1115 binds the converter at addr on bus. The bus stays owned by
// the caller.
func NewADS1115(bus i2c.Bus, addr uint16) *ADS1115 {
	return &ADS1115{
		dev:   i2c.Dev{Bus: bus, Addr: addr},
		sleep: time.Sleep,
	}
}

func channelConfig(ch core.ADCChannelID) uint16 {
	return cfgStart | cfgMuxSingle | uint16(ch)<<12 | cfgPGA4096 | cfgSingleShot | cfgRate860 | cfgCompOff
}

// ConfigureChannel implements core.ADCDriver.
func (a *ADS1115) ConfigureChannel(ch core.ADCChannelID) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	a.mu.Lock()
	a.configured[ch] = true
	a.mu.Unlock()
	return nil
}

// ReadRaw starts a conversion on ch and waits for it. The converter has a
// single multiplexer so conversions are serialized.
func (a *ADS1115) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.configured[ch] {
		return 0, fmt.Errorf("ads1115 channel %d not configured: %w", ch, core.ErrDeviceNotReady)
	}

	var w [3]byte
	w[0] = regConfig
	binary.BigEndian.PutUint16(w[1:], channelConfig(ch))
	if err := a.dev.Tx(w[:], nil); err != nil {
		return 0, fmt.Errorf("ads1115 start channel %d: %w", ch, err)
	}

	var r [2]byte
	for try := 0; ; try++ {
		a.sleep(conversionWait)
		if err := a.dev.Tx([]byte{regConfig}, r[:]); err != nil {
			return 0, fmt.Errorf("ads1115 poll channel %d: %w", ch, err)
		}
		if binary.BigEndian.Uint16(r[:])&cfgStart != 0 {
			break
		}
		if try == conversionPoll {
			return 0, fmt.Errorf("ads1115 channel %d: conversion timed out: %w", ch, core.ErrSensorRead)
		}
	}

	if err := a.dev.Tx([]byte{regConversion}, r[:]); err != nil {
		return 0, fmt.Errorf("ads1115 read channel %d: %w", ch, err)
	}
	return scaleSample(int32(int16(binary.BigEndian.Uint16(r[:])))), nil
}

// Close releases the bus when it was opened by OpenADS1115.
func (a *ADS1115) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}
