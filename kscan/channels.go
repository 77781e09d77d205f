package kscan

import (
	"fmt"
	"log/slog"
	"time"

	"ykb/core"
)

// ChannelsConfig describes a backend with one ADC channel per key.
type ChannelsConfig struct {
	Channels          []core.ADCChannelID
	IdxOffset         uint16
	Settle            time.Duration
	DefaultThresholds []uint16
}

// Channels scans every key on its own ADC channel, one goroutine per channel.
type Channels struct {
	*base
	adc      core.ADCDriver
	channels []core.ADCChannelID
}

var _ Backend = (*Channels)(nil)

// NewChannels checks and configures every channel. No goroutine runs until
// Start is called.
func NewChannels(adc core.ADCDriver, reg *Registry, cfg ChannelsConfig, opts ...Option) (*Channels, error) {
	if len(cfg.Channels) != len(cfg.DefaultThresholds) {
		return nil, errorf(ErrConfigurationMismatch, "%d channels but %d default thresholds",
			len(cfg.Channels), len(cfg.DefaultThresholds))
	}
	b, err := newBase(KindChannels, cfg.IdxOffset, cfg.Settle, cfg.DefaultThresholds, reg, opts)
	if err != nil {
		return nil, err
	}

	for _, ch := range cfg.Channels {
		if err := adc.ConfigureChannel(ch); err != nil {
			b.log.Error("could not set up ADC channel", "channel", ch, "err", err)
			return nil, wrapf(ErrDeviceNotReady, err, "ADC channel %d", ch)
		}
		b.log.Debug("ADC channel set up", "channel", ch)
	}
	b.log.Info("kscan ready", "channels", len(cfg.Channels))

	return &Channels{
		base:     b,
		adc:      adc,
		channels: append([]core.ADCChannelID(nil), cfg.Channels...),
	}, nil
}

// Start launches one scanning goroutine per channel.
func (c *Channels) Start() {
	c.start.Do(func() {
		for i := range c.channels {
			i := i
			c.spawn(fmt.Sprintf("%s/ch%d", c.name, i), func(log *slog.Logger) error {
				return c.scan(i)
			})
		}
	})
}

// scan polls channel i until a read fails.
func (c *Channels) scan(i int) error {
	ch := c.channels[i]
	keys := newEdges(1, c.idxOffset+uint16(i), c.reg)
	for {
		v, err := c.adc.ReadRaw(ch)
		if err != nil {
			return wrapf(ErrSensorRead, err, "ADC channel %d", ch)
		}
		keys.update(0, v, c.th.Load(i))
		c.settleDelay()
	}
}
