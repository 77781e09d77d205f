package kscan

import (
	"log/slog"
	"time"

	"ykb/core"
)

// EnablesConfig describes a backend where every key sensor shares one ADC
// channel and is switched onto it by its own GPIO enable line.
type EnablesConfig struct {
	Channel           core.ADCChannelID
	Enables           []core.GPIOLine
	IdxOffset         uint16
	Settle            time.Duration
	DefaultThresholds []uint16
}

// Enables scans its keys round-robin from a single goroutine.
type Enables struct {
	*base
	adc     core.ADCDriver
	gpio    core.GPIODriver
	channel core.ADCChannelID
	enables []core.GPIOLine
}

var _ Backend = (*Enables)(nil)

// NewEnables configures every enable line inactive and sets up the shared
// ADC channel.
func NewEnables(adc core.ADCDriver, gpio core.GPIODriver, reg *Registry, cfg EnablesConfig, opts ...Option) (*Enables, error) {
	if len(cfg.Enables) != len(cfg.DefaultThresholds) {
		return nil, errorf(ErrConfigurationMismatch, "%d enable lines but %d default thresholds",
			len(cfg.Enables), len(cfg.DefaultThresholds))
	}
	b, err := newBase(KindEnables, cfg.IdxOffset, cfg.Settle, cfg.DefaultThresholds, reg, opts)
	if err != nil {
		return nil, err
	}

	for _, en := range cfg.Enables {
		if err := en.ConfigureInactive(gpio); err != nil {
			b.log.Error("could not configure enable line", "line", en, "err", err)
			return nil, wrapf(ErrDeviceNotReady, err, "enable line %s", en)
		}
	}
	if err := adc.ConfigureChannel(cfg.Channel); err != nil {
		b.log.Error("could not set up ADC channel", "channel", cfg.Channel, "err", err)
		return nil, wrapf(ErrDeviceNotReady, err, "ADC channel %d", cfg.Channel)
	}
	b.log.Debug("ADC channel set up", "channel", cfg.Channel)
	b.log.Info("kscan ready", "enables", len(cfg.Enables))

	return &Enables{
		base:    b,
		adc:     adc,
		gpio:    gpio,
		channel: cfg.Channel,
		enables: append([]core.GPIOLine(nil), cfg.Enables...),
	}, nil
}

// Start launches the scanning goroutine.
func (e *Enables) Start() {
	e.start.Do(func() {
		e.spawn(e.name+"/enables", e.scan)
	})
}

func (e *Enables) scan(log *slog.Logger) error {
	// Only one sensor may be connected to the shared channel at a time.
	for _, en := range e.enables {
		if err := en.Set(e.gpio, false); err != nil {
			return wrapf(ErrSelector, err, "enable line %s", en)
		}
	}

	keys := newEdges(len(e.enables), e.idxOffset, e.reg)
	for {
		for i, en := range e.enables {
			if err := en.Set(e.gpio, true); err != nil {
				e.release(log, en)
				return wrapf(ErrSelector, err, "enable line %s", en)
			}

			e.settleDelay()

			v, err := e.adc.ReadRaw(e.channel)
			if err != nil {
				e.release(log, en)
				return wrapf(ErrSensorRead, err, "ADC channel %d", e.channel)
			}
			keys.update(i, v, e.th.Load(i))

			if err := en.Set(e.gpio, false); err != nil {
				return wrapf(ErrSelector, err, "enable line %s", en)
			}
		}
	}
}

// release is the best-effort deactivation done before the task gives up.
func (e *Enables) release(log *slog.Logger, en core.GPIOLine) {
	if err := en.Set(e.gpio, false); err != nil {
		log.Warn("unable to deactivate enable line", "line", en, "err", err)
	}
}
