// Package keyboard assembles the scan backends of one keyboard half from
// its layout.
package keyboard

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ykb/config"
	"ykb/core"
	"ykb/kscan"
	"ykb/mux"
)

// Options tune how the backends are built.
type Options struct {
	// Listeners receive key edges from every backend, in order.
	Listeners []kscan.Listener

	// Hooks observe scan goroutines.
	Hooks kscan.Hooks

	// Logger defaults to core.Logger().
	Logger *slog.Logger

	// Sleep replaces time.Sleep for settle delays.
	Sleep func(time.Duration)
}

// Keyboard owns the backends of one half.
type Keyboard struct {
	name     string
	backends []kscan.Backend
	muxes    []*mux.GPIOMux
	keys     int
	log      *slog.Logger
}

// New builds every backend in layout. Backends share one listener registry.
// Key index ranges of different backends must not overlap.
func New(layout *config.Layout, adc core.ADCDriver, gpio core.GPIODriver, opts Options) (*Keyboard, error) {
	log := opts.Logger
	if log == nil {
		log = core.Logger()
	}
	if adc == nil {
		return nil, fmt.Errorf("keyboard %s: no ADC driver: %w", layout.Name, core.ErrDeviceNotReady)
	}
	if err := checkRanges(layout.Scanners); err != nil {
		return nil, fmt.Errorf("keyboard %s: %w", layout.Name, err)
	}

	kb := &Keyboard{name: layout.Name, log: log.With("keyboard", layout.Name)}
	reg := kscan.NewRegistry(opts.Listeners...)

	for i := range layout.Scanners {
		s := &layout.Scanners[i]
		b, err := kb.build(s, adc, gpio, reg, opts)
		if err != nil {
			kb.releaseMuxes()
			return nil, fmt.Errorf("keyboard %s: scanner %s: %w", layout.Name, s.Name, err)
		}
		kb.backends = append(kb.backends, b)
		kb.keys += int(b.KeyAmount())
	}
	kb.log.Info("keyboard ready", "scanners", len(kb.backends), "keys", kb.keys)
	return kb, nil
}

// releaseMuxes disables every mux built so far.
func (kb *Keyboard) releaseMuxes() {
	for _, m := range kb.muxes {
		if err := m.Disable(); err != nil {
			kb.log.Warn("unable to disable mux", "mux", m.Name(), "err", err)
		}
	}
}

func (kb *Keyboard) build(s *config.Scanner, adc core.ADCDriver, gpio core.GPIODriver, reg *kscan.Registry, opts Options) (kscan.Backend, error) {
	kopts := []kscan.Option{
		kscan.WithName(s.Name),
		kscan.WithLogger(kb.log),
		kscan.WithHooks(opts.Hooks),
	}
	if opts.Sleep != nil {
		kopts = append(kopts, kscan.WithSleep(opts.Sleep))
	}

	switch s.Kind {
	case config.KindChannels:
		return kscan.NewChannels(adc, reg, kscan.ChannelsConfig{
			Channels:          s.Channels,
			IdxOffset:         s.IdxOffset,
			Settle:            s.SettleDuration(),
			DefaultThresholds: s.Thresholds,
		}, kopts...)

	case config.KindEnables:
		if gpio == nil {
			return nil, fmt.Errorf("no GPIO driver: %w", core.ErrDeviceNotReady)
		}
		return kscan.NewEnables(adc, gpio, reg, kscan.EnablesConfig{
			Channel:           s.Channel,
			Enables:           s.Enables,
			IdxOffset:         s.IdxOffset,
			Settle:            s.SettleDuration(),
			DefaultThresholds: s.Thresholds,
		}, kopts...)

	case config.KindMuxes:
		if gpio == nil {
			return nil, fmt.Errorf("no GPIO driver: %w", core.ErrDeviceNotReady)
		}
		legs := make([]kscan.MuxLeg, len(s.Legs))
		for j, leg := range s.Legs {
			mopts := []mux.Option{mux.WithLogger(kb.log)}
			if opts.Sleep != nil {
				mopts = append(mopts, mux.WithSleep(opts.Sleep))
			}
			m, err := mux.NewGPIO(gpio, leg.Mux.Config(), mopts...)
			if err != nil {
				return nil, err
			}
			kb.muxes = append(kb.muxes, m)
			legs[j] = kscan.MuxLeg{Channel: leg.Channel, Mux: m}
		}
		return kscan.NewMuxes(adc, reg, kscan.MuxesConfig{
			Legs:              legs,
			IdxOffset:         s.IdxOffset,
			Settle:            s.SettleDuration(),
			DefaultThresholds: s.Thresholds,
		}, kopts...)
	}
	return nil, fmt.Errorf("unknown kind %q: %w", s.Kind, core.ErrConfigurationMismatch)
}

type keyRange struct {
	name       string
	start, end int // [start, end)
}

// checkRanges rejects layouts where two backends report the same key index.
func checkRanges(scanners []config.Scanner) error {
	ranges := make([]keyRange, 0, len(scanners))
	for _, s := range scanners {
		start := int(s.IdxOffset)
		ranges = append(ranges, keyRange{s.Name, start, start + s.KeyAmount()})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if cur.start < prev.end {
			return fmt.Errorf("scanners %s [%d,%d) and %s [%d,%d) overlap: %w",
				prev.name, prev.start, prev.end, cur.name, cur.start, cur.end, core.ErrConfigurationMismatch)
		}
	}
	return nil
}

// Name returns the layout name.
func (kb *Keyboard) Name() string { return kb.name }

// Start launches every backend.
func (kb *Keyboard) Start() {
	for _, b := range kb.backends {
		b.Start()
	}
}

// Wait blocks until every scan goroutine has stopped.
func (kb *Keyboard) Wait() {
	for _, b := range kb.backends {
		b.Wait()
	}
}

// Running returns the number of live scan goroutines.
func (kb *Keyboard) Running() int {
	n := 0
	for _, b := range kb.backends {
		n += b.Running()
	}
	return n
}

// Scanners returns the backends in layout order.
func (kb *Keyboard) Scanners() []kscan.Backend {
	return append([]kscan.Backend(nil), kb.backends...)
}

// Scanner returns backend i.
func (kb *Keyboard) Scanner(i int) (kscan.Backend, bool) {
	if i < 0 || i >= len(kb.backends) {
		return nil, false
	}
	return kb.backends[i], true
}

// KeyCount returns the number of keys over all backends.
func (kb *Keyboard) KeyCount() int { return kb.keys }

// Muxes returns the multiplexers created for muxes backends.
func (kb *Keyboard) Muxes() []*mux.GPIOMux {
	return append([]*mux.GPIOMux(nil), kb.muxes...)
}
