package mux

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ykb/core"
)

// GPIOMux implements Mux with plain GPIO select and enable lines.
type GPIOMux struct {
	name       string
	gpio       core.GPIODriver
	sel        []core.GPIOLine
	en         *core.GPIOLine
	idle       uint16
	hasIdle    bool
	channels   uint16
	channelMap []uint32
	settle     time.Duration
	sleep      func(time.Duration)
	log        *slog.Logger

	// mu serializes selector changes; current and enabled are atomics so
	// accessors never block behind a settle delay.
	mu      sync.Mutex
	current atomic.Uint32
	enabled atomic.Bool
}

var _ Mux = (*GPIOMux)(nil)

// Option customizes a GPIOMux.
type Option func(*GPIOMux)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(m *GPIOMux) { m.log = l }
}

// WithSleep replaces time.Sleep for settle delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(m *GPIOMux) { m.sleep = fn }
}

// NewGPIO validates cfg, configures every line inactive and parks the mux
// on its idle channel (or channel 0).
//
// The mux starts disabled when it has an enable line and enabled otherwise.
func NewGPIO(d core.GPIODriver, cfg Config, opts ...Option) (*GPIOMux, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	m := &GPIOMux{
		name:       cfg.Name,
		gpio:       d,
		sel:        append([]core.GPIOLine(nil), cfg.Select...),
		en:         cfg.Enable,
		channels:   cfg.channelAmount(),
		channelMap: append([]uint32(nil), cfg.ChannelMap...),
		settle:     cfg.Settle,
		sleep:      time.Sleep,
		log:        core.Logger(),
	}
	if cfg.IdleChannel != nil {
		m.idle = *cfg.IdleChannel
		m.hasIdle = true
	}
	if len(m.channelMap) == 0 {
		m.channelMap = nil
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, line := range m.sel {
		if err := line.ConfigureInactive(d); err != nil {
			return nil, fmt.Errorf("mux %s: select line %s: %w: %w", m.name, line, core.ErrDeviceNotReady, err)
		}
	}
	if m.en != nil {
		if err := m.en.ConfigureInactive(d); err != nil {
			return nil, fmt.Errorf("mux %s: enable line %s: %w: %w", m.name, m.en, core.ErrDeviceNotReady, err)
		}
		m.enabled.Store(false)
	} else {
		m.enabled.Store(true)
	}

	initial := uint16(0)
	if m.hasIdle {
		initial = m.idle
	}
	if err := m.Select(initial); err != nil {
		return nil, fmt.Errorf("mux %s: initial select: %w: %w", m.name, core.ErrDeviceNotReady, err)
	}

	m.log.Debug("mux ready", "mux", m.name, "channels", m.channels, "select_lines", len(m.sel))
	return m, nil
}

func validate(cfg *Config) error {
	n := len(cfg.Select)
	if n == 0 || n > MaxSelectLines {
		return fmt.Errorf("mux %s: %d select lines (want 1..%d): %w", cfg.Name, n, MaxSelectLines, core.ErrConfigurationMismatch)
	}
	channels := cfg.channelAmount()
	limit := uint32(1) << n
	if len(cfg.ChannelMap) == 0 {
		if uint32(channels) > limit {
			return fmt.Errorf("mux %s: %d channels need more than %d select lines: %w", cfg.Name, channels, n, core.ErrConfigurationMismatch)
		}
	} else {
		if len(cfg.ChannelMap) < int(channels) {
			return fmt.Errorf("mux %s: channel map has %d entries for %d channels: %w", cfg.Name, len(cfg.ChannelMap), channels, core.ErrConfigurationMismatch)
		}
		for i, p := range cfg.ChannelMap {
			if p >= limit {
				return fmt.Errorf("mux %s: channel map entry %d (0x%x) exceeds %d select lines: %w", cfg.Name, i, p, n, core.ErrConfigurationMismatch)
			}
		}
	}
	if cfg.IdleChannel != nil && *cfg.IdleChannel >= channels {
		return fmt.Errorf("mux %s: idle channel %d out of range: %w", cfg.Name, *cfg.IdleChannel, core.ErrConfigurationMismatch)
	}
	return nil
}

// Name returns the configured mux name.
func (m *GPIOMux) Name() string {
	return m.name
}

// pattern returns the raw select bits for a logical channel.
func (m *GPIOMux) pattern(ch uint16) uint32 {
	if m.channelMap != nil {
		return m.channelMap[ch]
	}
	return uint32(ch)
}

func (m *GPIOMux) driveBits(pattern uint32) error {
	for i, line := range m.sel {
		if err := line.Set(m.gpio, (pattern>>i)&1 == 1); err != nil {
			return fmt.Errorf("mux %s: select line %s: %w: %w", m.name, line, core.ErrSelector, err)
		}
	}
	return nil
}

func (m *GPIOMux) settleDelay() {
	if m.settle > 0 {
		m.sleep(m.settle)
	}
}

// Select implements Mux.
func (m *GPIOMux) Select(ch uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(ch)
}

func (m *GPIOMux) selectLocked(ch uint16) error {
	if ch >= m.channels {
		return fmt.Errorf("mux %s: channel %d of %d: %w", m.name, ch, m.channels, core.ErrInvalidArgument)
	}
	if err := m.driveBits(m.pattern(ch)); err != nil {
		return err
	}
	m.settleDelay()
	m.current.Store(uint32(ch))
	return nil
}

// SelectNext implements Mux.
func (m *GPIOMux) SelectNext() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := uint16((m.current.Load() + 1) % uint32(m.channels))
	return m.selectLocked(next)
}

// Enable implements Mux.
func (m *GPIOMux) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled.Load() {
		return nil
	}
	if m.en != nil {
		if err := m.en.Set(m.gpio, true); err != nil {
			return fmt.Errorf("mux %s: enable line %s: %w: %w", m.name, m.en, core.ErrSelector, err)
		}
	}
	m.enabled.Store(true)
	return nil
}

// Disable implements Mux.
func (m *GPIOMux) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled.Load() {
		return nil
	}
	if m.hasIdle {
		if err := m.selectLocked(m.idle); err != nil {
			return err
		}
	}
	if m.en != nil {
		if err := m.en.Set(m.gpio, false); err != nil {
			return fmt.Errorf("mux %s: enable line %s: %w: %w", m.name, m.en, core.ErrSelector, err)
		}
	}
	m.enabled.Store(false)
	return nil
}

// IsEnabled implements Mux.
func (m *GPIOMux) IsEnabled() bool {
	return m.enabled.Load()
}

// CurrentChannel implements Mux.
func (m *GPIOMux) CurrentChannel() uint16 {
	return uint16(m.current.Load())
}

// ChannelAmount implements Mux.
func (m *GPIOMux) ChannelAmount() uint16 {
	return m.channels
}
