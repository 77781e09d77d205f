package config

import "ykb/core"

// Default returns the layout of the reference left half: three direct keys
// on ADC0..ADC2 plus a 16 channel CD74HC4067 on ADC3.
func Default() *Layout {
	idle := uint16(0)
	l := &Layout{
		Name: "left",
		ADC:  ADC{Driver: ADCInternal},
		Scanners: []Scanner{
			{
				Name:       "thumb",
				Kind:       KindChannels,
				IdxOffset:  0,
				Channels:   []core.ADCChannelID{0, 1, 2},
				Thresholds: []uint16{480, 480, 520},
			},
			{
				Name:      "main",
				Kind:      KindMuxes,
				IdxOffset: 3,
				Legs: []Leg{{
					Channel: 3,
					Mux: Mux{
						Name:        "u1",
						Select:      []core.GPIOLine{{Pin: 2}, {Pin: 3}, {Pin: 4}, {Pin: 5}},
						Enable:      &core.GPIOLine{Pin: 6, ActiveLow: true},
						IdleChannel: &idle,
					},
				}},
			},
		},
	}
	applyDefaults(l)
	return l
}
