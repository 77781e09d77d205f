package kscan

import (
	"fmt"
	"sync/atomic"
)

// Thresholds are 10-bit and never zero: a zero threshold would report a
// permanently pressed key.
const (
	MinThreshold = 1
	MaxThreshold = 1023
)

// Thresholds holds the live per-key thresholds of a backend.
//
// Each element is an independent atomic. A scanning goroutine loads one
// element per key per cycle, so a concurrent Set can at worst leave one
// cycle comparing some keys against old values and some against new ones.
type Thresholds struct {
	live     []atomic.Uint32
	defaults []uint16
}

// NewThresholds copies defaults and uses them as the initial live values.
func NewThresholds(defaults []uint16) (*Thresholds, error) {
	if len(defaults) == 0 {
		return nil, fmt.Errorf("no default thresholds: %w", ErrConfigurationMismatch)
	}
	if len(defaults) > 0xFFFF {
		return nil, fmt.Errorf("%d keys exceed the 16-bit index space: %w", len(defaults), ErrConfigurationMismatch)
	}
	if i, ok := outOfRange(defaults); ok {
		return nil, fmt.Errorf("default threshold %d = %d not in [%d, %d]: %w",
			i, defaults[i], MinThreshold, MaxThreshold, ErrConfigurationMismatch)
	}

	t := &Thresholds{
		live:     make([]atomic.Uint32, len(defaults)),
		defaults: append([]uint16(nil), defaults...),
	}
	t.Reset()
	return t, nil
}

func outOfRange(values []uint16) (int, bool) {
	for i, v := range values {
		if v < MinThreshold || v > MaxThreshold {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of keys.
func (t *Thresholds) Len() int {
	return len(t.live)
}

// Load returns the threshold of key i.
func (t *Thresholds) Load(i int) uint16 {
	return uint16(t.live[i].Load())
}

// Set validates values and then stores all of them.
// Nothing is stored when validation fails.
func (t *Thresholds) Set(values []uint16) error {
	if values == nil {
		return fmt.Errorf("nil thresholds: %w", ErrInvalidArgument)
	}
	if len(values) != len(t.live) {
		return fmt.Errorf("got %d thresholds for %d keys: %w", len(values), len(t.live), ErrInvalidArgument)
	}
	if i, ok := outOfRange(values); ok {
		return fmt.Errorf("threshold %d = %d not in [%d, %d]: %w",
			i, values[i], MinThreshold, MaxThreshold, ErrInvalidArgument)
	}
	for i, v := range values {
		t.live[i].Store(uint32(v))
	}
	return nil
}

// Get copies the live thresholds into out.
func (t *Thresholds) Get(out []uint16) error {
	if len(out) < len(t.live) {
		return fmt.Errorf("output holds %d of %d thresholds: %w", len(out), len(t.live), ErrInvalidArgument)
	}
	for i := range t.live {
		out[i] = uint16(t.live[i].Load())
	}
	return nil
}

// Reset restores the defaults.
func (t *Thresholds) Reset() {
	for i, v := range t.defaults {
		t.live[i].Store(uint32(v))
	}
}

// Defaults returns a copy of the construction-time thresholds.
func (t *Thresholds) Defaults() []uint16 {
	return append([]uint16(nil), t.defaults...)
}
