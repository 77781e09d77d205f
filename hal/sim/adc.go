// Package sim provides in-memory ADC and GPIO drivers.
// They let the scan engine run without hardware: in tests, and in the
// host tool's simulate command.
package sim

import (
	"errors"
	"sync"

	"ykb/core"
)

var (
	// ErrScriptDone is returned by a scripted channel once all of its
	// samples have been consumed.
	ErrScriptDone = errors.New("sim: sample script exhausted")

	// ErrNotReady is returned by ConfigureChannel for channels marked not ready.
	ErrNotReady = errors.New("sim: channel not ready")

	// ErrUnknownChannel is returned when reading a channel with no data source.
	ErrUnknownChannel = errors.New("sim: channel has no source")
)

// SourceFunc produces one sample per call.
type SourceFunc func() (core.ADCValue, error)

type adcChannel struct {
	script []core.ADCValue
	pos    int
	live   bool
	value  core.ADCValue
	source SourceFunc
	reads  int
}

// ADC is a core.ADCDriver whose channels are fed by scripts, live values
// or arbitrary source functions.
type ADC struct {
	mu         sync.Mutex
	channels   map[core.ADCChannelID]*adcChannel
	notReady   map[core.ADCChannelID]bool
	configured map[core.ADCChannelID]bool
	failures   map[core.ADCChannelID]error
}

// NewADC returns an ADC with no channels.
func NewADC() *ADC {
	return &ADC{
		channels:   make(map[core.ADCChannelID]*adcChannel),
		notReady:   make(map[core.ADCChannelID]bool),
		configured: make(map[core.ADCChannelID]bool),
		failures:   make(map[core.ADCChannelID]error),
	}
}

func (a *ADC) channel(ch core.ADCChannelID) *adcChannel {
	c, ok := a.channels[ch]
	if !ok {
		c = &adcChannel{}
		a.channels[ch] = c
	}
	return c
}

// Script makes the channel return values in order, then ErrScriptDone.
func (a *ADC) Script(ch core.ADCChannelID, values ...core.ADCValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.channel(ch)
	c.script = append([]core.ADCValue(nil), values...)
	c.pos = 0
	c.live = false
	c.source = nil
}

// Set makes the channel return v on every read until changed.
func (a *ADC) Set(ch core.ADCChannelID, v core.ADCValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.channel(ch)
	c.live = true
	c.value = v
	c.source = nil
}

// Source attaches a sample generator to the channel.
func (a *ADC) Source(ch core.ADCChannelID, fn SourceFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.channel(ch)
	c.source = fn
	c.live = false
}

// SetNotReady makes ConfigureChannel fail for the channel.
func (a *ADC) SetNotReady(ch core.ADCChannelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notReady[ch] = true
}

// FailWith makes every following read of the channel return err.
func (a *ADC) FailWith(ch core.ADCChannelID, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[ch] = err
}

// Reads returns how many samples were taken from the channel.
func (a *ADC) Reads(ch core.ADCChannelID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.channels[ch]; ok {
		return c.reads
	}
	return 0
}

// Configured reports whether ConfigureChannel succeeded for the channel.
func (a *ADC) Configured(ch core.ADCChannelID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.configured[ch]
}

// ConfigureChannel implements core.ADCDriver.
func (a *ADC) ConfigureChannel(ch core.ADCChannelID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.notReady[ch] {
		return ErrNotReady
	}
	a.configured[ch] = true
	return nil
}

// ReadRaw implements core.ADCDriver.
func (a *ADC) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	a.mu.Lock()
	if err, ok := a.failures[ch]; ok {
		a.mu.Unlock()
		return 0, err
	}
	c, ok := a.channels[ch]
	if !ok {
		a.mu.Unlock()
		return 0, ErrUnknownChannel
	}
	c.reads++
	if src := c.source; src != nil {
		// Sources may consult other simulated devices; call without the lock.
		a.mu.Unlock()
		return src()
	}
	defer a.mu.Unlock()
	if c.live {
		return c.value, nil
	}
	if c.pos >= len(c.script) {
		return 0, ErrScriptDone
	}
	v := c.script[c.pos]
	c.pos++
	return v, nil
}
