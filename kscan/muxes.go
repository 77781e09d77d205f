package kscan

import (
	"fmt"
	"log/slog"
	"time"

	"ykb/core"
	"ykb/mux"
)

// MuxLeg is one multiplexer together with the ADC channel its output is
// wired to.
type MuxLeg struct {
	Channel core.ADCChannelID
	Mux     mux.Mux
}

// MuxesConfig describes a backend reading its keys through chained muxes.
// Keys are numbered leg by leg: the keys of leg j start right after the
// last key of leg j-1.
type MuxesConfig struct {
	Legs              []MuxLeg
	IdxOffset         uint16
	Settle            time.Duration
	DefaultThresholds []uint16
}

// Muxes scans each leg from its own goroutine.
type Muxes struct {
	*base
	adc     core.ADCDriver
	legs    []MuxLeg
	offsets []uint16 // first local key of each leg
}

var _ Backend = (*Muxes)(nil)

// NewMuxes checks that the mux channel counts add up to the number of
// default thresholds, enables every mux and sets up the ADC channels.
func NewMuxes(adc core.ADCDriver, reg *Registry, cfg MuxesConfig, opts ...Option) (*Muxes, error) {
	if len(cfg.Legs) == 0 {
		return nil, errorf(ErrConfigurationMismatch, "no mux legs")
	}
	b, err := newBase(KindMuxes, cfg.IdxOffset, cfg.Settle, cfg.DefaultThresholds, reg, opts)
	if err != nil {
		return nil, err
	}

	offsets := make([]uint16, len(cfg.Legs))
	total := 0
	enabled := 0
	for j, leg := range cfg.Legs {
		if leg.Mux == nil {
			disableLegs(b.log, cfg.Legs[:enabled])
			return nil, errorf(ErrDeviceNotReady, "leg %d has no mux", j)
		}
		offsets[j] = uint16(total)
		total += int(leg.Mux.ChannelAmount())
		if err := leg.Mux.Enable(); err != nil {
			b.log.Error("could not enable mux", "leg", j, "err", err)
			disableLegs(b.log, cfg.Legs[:enabled])
			return nil, wrapf(ErrDeviceNotReady, err, "mux of leg %d", j)
		}
		enabled++
		b.log.Debug("mux ready", "leg", j, "channels", leg.Mux.ChannelAmount())
	}
	if total != len(cfg.DefaultThresholds) {
		b.log.Error("mux channels do not match key amount", "mux_channels", total, "keys", len(cfg.DefaultThresholds))
		disableLegs(b.log, cfg.Legs)
		return nil, errorf(ErrConfigurationMismatch, "muxes provide %d channels for %d keys",
			total, len(cfg.DefaultThresholds))
	}

	for _, leg := range cfg.Legs {
		if err := adc.ConfigureChannel(leg.Channel); err != nil {
			b.log.Error("could not set up ADC channel", "channel", leg.Channel, "err", err)
			disableLegs(b.log, cfg.Legs)
			return nil, wrapf(ErrDeviceNotReady, err, "ADC channel %d", leg.Channel)
		}
		b.log.Debug("ADC channel set up", "channel", leg.Channel)
	}
	b.log.Info("kscan ready", "muxes", len(cfg.Legs))

	return &Muxes{
		base:    b,
		adc:     adc,
		legs:    append([]MuxLeg(nil), cfg.Legs...),
		offsets: offsets,
	}, nil
}

// disableLegs releases the muxes of a backend that failed to come up.
func disableLegs(log *slog.Logger, legs []MuxLeg) {
	for j, leg := range legs {
		if err := leg.Mux.Disable(); err != nil {
			log.Warn("unable to disable mux", "leg", j, "err", err)
		}
	}
}

// LegOffset returns the local index of the first key of leg j.
func (m *Muxes) LegOffset(j int) uint16 {
	return m.offsets[j]
}

// Start launches one scanning goroutine per leg.
func (m *Muxes) Start() {
	m.start.Do(func() {
		for j := range m.legs {
			j := j
			m.spawn(fmt.Sprintf("%s/mux%d", m.name, j), func(log *slog.Logger) error {
				return m.scan(log, j)
			})
		}
	})
}

// scan cycles leg j's mux through its channels until a read or select
// fails, then disables the mux.
func (m *Muxes) scan(log *slog.Logger, j int) error {
	leg := m.legs[j]
	offset := int(m.offsets[j])
	channels := int(leg.Mux.ChannelAmount())

	if err := leg.Mux.Enable(); err != nil {
		// The mux may still pass signals; keep scanning.
		log.Error("unable to enable mux", "err", err)
	}

	keys := newEdges(channels, m.idxOffset+uint16(offset), m.reg)
	var err error
	for err == nil {
		err = m.cycle(leg, keys, offset, channels)
	}

	if derr := leg.Mux.Disable(); derr != nil {
		log.Warn("unable to disable mux", "err", derr)
	}
	return err
}

// cycle visits every channel of the leg once.
func (m *Muxes) cycle(leg MuxLeg, keys *edges, offset, channels int) error {
	for n := 0; n < channels; n++ {
		i := int(leg.Mux.CurrentChannel())
		if i >= channels {
			return errorf(ErrSelector, "mux reports channel %d of %d", i, channels)
		}

		v, err := m.adc.ReadRaw(leg.Channel)
		if err != nil {
			return wrapf(ErrSensorRead, err, "ADC channel %d", leg.Channel)
		}
		keys.update(i, v, m.th.Load(offset+i))

		if err := leg.Mux.SelectNext(); err != nil {
			return wrapf(ErrSelector, err, "select next mux channel")
		}
		m.settleDelay()
	}
	return nil
}
