package cmd

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"ykb/config"
	"ykb/core"
	"ykb/hal/sim"
	"ykb/keyboard"
)

// Simulated readings. Thresholds default to 512.
const (
	simRest    = 80
	simPressed = 820
	simNoise   = 24
)

// resolver reports which key, if any, is connected to an ADC channel.
type resolver func() (idx int, ok bool)

// simBoard feeds a sim.ADC from a set of virtual key states. It follows
// the simulated enable lines and the keyboard's muxes so each sample
// reflects the key currently routed to the channel.
type simBoard struct {
	adc     *sim.ADC
	gpio    *sim.GPIO
	pressed []atomic.Bool
	keys    []int
	rng     *rand.Rand
}

func newSimBoard(seed uint64) *simBoard {
	return &simBoard{
		adc:  sim.NewADC(),
		gpio: sim.NewGPIO(),
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// attach installs a source on every ADC channel the layout reads.
// kb must have been built from layout.
func (b *simBoard) attach(layout *config.Layout, kb *keyboard.Keyboard) {
	muxes := kb.Muxes()
	routes := make(map[core.ADCChannelID][]resolver)
	maxIdx := 0

	for _, s := range layout.Scanners {
		base := int(s.IdxOffset)
		for k := 0; k < s.KeyAmount(); k++ {
			b.keys = append(b.keys, base+k)
		}
		maxIdx = max(maxIdx, base+s.KeyAmount())

		switch s.Kind {
		case config.KindChannels:
			for i, ch := range s.Channels {
				idx := base + i
				routes[ch] = append(routes[ch], func() (int, bool) { return idx, true })
			}
		case config.KindEnables:
			for i, line := range s.Enables {
				idx := base + i
				routes[s.Channel] = append(routes[s.Channel], func() (int, bool) {
					on, err := line.Active(b.gpio)
					return idx, err == nil && on
				})
			}
		case config.KindMuxes:
			for _, leg := range s.Legs {
				m := muxes[0]
				muxes = muxes[1:]
				legBase := base
				routes[leg.Channel] = append(routes[leg.Channel], func() (int, bool) {
					return legBase + int(m.CurrentChannel()), m.IsEnabled()
				})
				base += leg.Mux.ChannelAmount()
			}
		}
	}

	b.pressed = make([]atomic.Bool, maxIdx)
	for ch, rs := range routes {
		b.adc.Source(ch, b.source(rs))
	}
}

func (b *simBoard) source(rs []resolver) sim.SourceFunc {
	return func() (core.ADCValue, error) {
		v := simRest
		for _, r := range rs {
			if idx, ok := r(); ok {
				if b.pressed[idx].Load() {
					v = simPressed
				}
				break
			}
		}
		v += rand.IntN(2*simNoise+1) - simNoise
		return core.ADCValue(v), nil
	}
}

// Press sets the virtual state of key idx.
func (b *simBoard) Press(idx int, down bool) {
	if idx >= 0 && idx < len(b.pressed) {
		b.pressed[idx].Store(down)
	}
}

// typeKeys presses a random key every interval and holds it for hold.
func (b *simBoard) typeKeys(ctx context.Context, interval, hold time.Duration) error {
	if len(b.keys) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			idx := b.keys[b.rng.IntN(len(b.keys))]
			b.Press(idx, true)
			time.AfterFunc(hold, func() { b.Press(idx, false) })
		}
	}
}
