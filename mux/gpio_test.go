package mux

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ykb/core"
	"ykb/hal/sim"
)

func selectLines(pins ...core.GPIOPin) []core.GPIOLine {
	lines := make([]core.GPIOLine, len(pins))
	for i, p := range pins {
		lines[i] = core.GPIOLine{Pin: p}
	}
	return lines
}

func selectedPattern(g *sim.GPIO, pins ...core.GPIOPin) uint32 {
	var p uint32
	for i, pin := range pins {
		if g.Level(pin) {
			p |= 1 << i
		}
	}
	return p
}

func u16(v uint16) *uint16 { return &v }

func TestNewGPIODefaults(t *testing.T) {
	g := sim.NewGPIO()
	m, err := NewGPIO(g, Config{Name: "m0", Select: selectLines(1, 2, 3, 4)})
	require.NoError(t, err)

	assert.Equal(t, uint16(16), m.ChannelAmount())
	assert.Equal(t, uint16(0), m.CurrentChannel())
	// No enable line: always on.
	assert.True(t, m.IsEnabled())
	for _, pin := range []core.GPIOPin{1, 2, 3, 4} {
		assert.True(t, g.IsConfigured(pin), "pin %d", pin)
	}
}

func TestSelectDrivesBinaryPattern(t *testing.T) {
	g := sim.NewGPIO()
	m, err := NewGPIO(g, Config{Select: selectLines(10, 11, 12)})
	require.NoError(t, err)

	for ch := uint16(0); ch < 8; ch++ {
		require.NoError(t, m.Select(ch))
		assert.Equal(t, uint32(ch), selectedPattern(g, 10, 11, 12))
		assert.Equal(t, ch, m.CurrentChannel())
	}
}

func TestSelectUsesChannelMap(t *testing.T) {
	g := sim.NewGPIO()
	m, err := NewGPIO(g, Config{
		Select:     selectLines(1, 2),
		Channels:   3,
		ChannelMap: []uint32{3, 1, 2},
	})
	require.NoError(t, err)

	require.NoError(t, m.Select(0))
	assert.Equal(t, uint32(3), selectedPattern(g, 1, 2))
	require.NoError(t, m.Select(2))
	assert.Equal(t, uint32(2), selectedPattern(g, 1, 2))
}

func TestSelectOutOfRange(t *testing.T) {
	g := sim.NewGPIO()
	m, err := NewGPIO(g, Config{Select: selectLines(1, 2), Channels: 3})
	require.NoError(t, err)

	err = m.Select(3)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Equal(t, uint16(0), m.CurrentChannel())
}

func TestSelectNextWraps(t *testing.T) {
	g := sim.NewGPIO()
	m, err := NewGPIO(g, Config{Select: selectLines(1, 2), Channels: 3})
	require.NoError(t, err)

	var seen []uint16
	for i := 0; i < 5; i++ {
		require.NoError(t, m.SelectNext())
		seen = append(seen, m.CurrentChannel())
	}
	assert.Equal(t, []uint16{1, 2, 0, 1, 2}, seen)
}

func TestSettleDelay(t *testing.T) {
	g := sim.NewGPIO()
	var slept []time.Duration
	m, err := NewGPIO(g, Config{Select: selectLines(1), Settle: 7 * time.Microsecond},
		WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	require.NoError(t, err)

	slept = nil
	require.NoError(t, m.SelectNext())
	assert.Equal(t, []time.Duration{7 * time.Microsecond}, slept)
}

func TestEnableDisableIdempotent(t *testing.T) {
	g := sim.NewGPIO()
	en := core.GPIOLine{Pin: 20, ActiveLow: true}
	m, err := NewGPIO(g, Config{Select: selectLines(1, 2), Enable: &en})
	require.NoError(t, err)

	assert.False(t, m.IsEnabled())
	// Active-low enable parks high while disabled.
	assert.True(t, g.Level(20))

	require.NoError(t, m.Enable())
	assert.True(t, m.IsEnabled())
	assert.False(t, g.Level(20))
	writes := len(g.Writes())
	require.NoError(t, m.Enable())
	assert.Len(t, g.Writes(), writes, "second Enable must not touch the pins")

	require.NoError(t, m.Disable())
	assert.False(t, m.IsEnabled())
	assert.True(t, g.Level(20))
	writes = len(g.Writes())
	require.NoError(t, m.Disable())
	assert.Len(t, g.Writes(), writes)
}

func TestDisableParksOnIdleChannel(t *testing.T) {
	g := sim.NewGPIO()
	en := core.GPIOLine{Pin: 20}
	m, err := NewGPIO(g, Config{Select: selectLines(1, 2, 3), Enable: &en, IdleChannel: u16(5)})
	require.NoError(t, err)
	assert.Equal(t, uint16(5), m.CurrentChannel(), "starts on the idle channel")

	require.NoError(t, m.Enable())
	require.NoError(t, m.Select(2))
	require.NoError(t, m.Disable())
	assert.Equal(t, uint16(5), m.CurrentChannel())
	assert.Equal(t, uint32(5), selectedPattern(g, 1, 2, 3))
	assert.False(t, g.Level(20))
}

func TestSelectFailureKeepsChannel(t *testing.T) {
	g := sim.NewGPIO()
	m, err := NewGPIO(g, Config{Select: selectLines(1, 2)})
	require.NoError(t, err)
	require.NoError(t, m.Select(1))

	g.FailSet(2, 0, sim.ErrPinFault)
	err = m.Select(2)
	assert.True(t, errors.Is(err, core.ErrSelector))
	assert.Equal(t, uint16(1), m.CurrentChannel())
}

func TestNewGPIOValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no select lines", Config{}},
		{"too many channels", Config{Select: selectLines(1, 2), Channels: 5}},
		{"short channel map", Config{Select: selectLines(1, 2), Channels: 3, ChannelMap: []uint32{0, 1}}},
		{"map pattern too wide", Config{Select: selectLines(1, 2), ChannelMap: []uint32{0, 1, 2, 4}}},
		{"idle out of range", Config{Select: selectLines(1), IdleChannel: u16(2)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGPIO(sim.NewGPIO(), tc.cfg)
			assert.True(t, errors.Is(err, core.ErrConfigurationMismatch), "got %v", err)
		})
	}
}

func TestNewGPIONotReady(t *testing.T) {
	g := sim.NewGPIO()
	g.FailConfigure(2, sim.ErrPinFault)
	_, err := NewGPIO(g, Config{Select: selectLines(1, 2)})
	assert.True(t, errors.Is(err, core.ErrDeviceNotReady))
}
