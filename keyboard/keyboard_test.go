package keyboard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ykb/config"
	"ykb/core"
	"ykb/hal/sim"
	"ykb/kscan"
)

const layoutYAML = `
name: left
adc: {driver: sim}
scanners:
  - name: thumb
    kind: channels
    settle: 0s
    channels: [0, 1]
  - name: column
    kind: enables
    idx_offset: 2
    settle: 0s
    channel: 2
    enables: [{pin: 10}, {pin: 11}]
  - name: grid
    kind: muxes
    idx_offset: 4
    settle: 0s
    legs:
      - channel: 3
        mux:
          select: [{pin: 0}, {pin: 1}]
          settle: 0s
`

func load(t *testing.T, doc string) *config.Layout {
	t.Helper()
	l, err := config.Load([]byte(doc))
	require.NoError(t, err)
	return l
}

func TestNewBuildsEveryBackend(t *testing.T) {
	a := sim.NewADC()
	g := sim.NewGPIO()

	kb, err := New(load(t, layoutYAML), a, g, Options{})
	require.NoError(t, err)

	assert.Equal(t, "left", kb.Name())
	assert.Equal(t, 8, kb.KeyCount())
	require.Len(t, kb.Scanners(), 3)
	assert.Len(t, kb.Muxes(), 1)

	kinds := []kscan.Kind{kscan.KindChannels, kscan.KindEnables, kscan.KindMuxes}
	offsets := []uint16{0, 2, 4}
	for i, b := range kb.Scanners() {
		assert.Equal(t, kinds[i], b.Kind())
		assert.Equal(t, offsets[i], b.IdxOffset())
	}

	s, ok := kb.Scanner(2)
	require.True(t, ok)
	assert.Equal(t, "grid", s.Name())
	_, ok = kb.Scanner(3)
	assert.False(t, ok)
	_, ok = kb.Scanner(-1)
	assert.False(t, ok)

	for _, ch := range []core.ADCChannelID{0, 1, 2, 3} {
		assert.True(t, a.Configured(ch), "channel %d", ch)
	}
	assert.True(t, g.IsConfigured(10))
	assert.True(t, g.IsConfigured(0))
}

func TestKeyboardScansAllBackends(t *testing.T) {
	a := sim.NewADC()
	g := sim.NewGPIO()
	a.Script(0, 100, 900, 100)
	a.Script(1)
	a.Script(2)
	a.Script(3)

	var mu sync.Mutex
	var pressed []uint16
	var exited []string
	kb, err := New(load(t, layoutYAML), a, g, Options{
		Listeners: []kscan.Listener{{OnPress: func(i uint16) {
			mu.Lock()
			pressed = append(pressed, i)
			mu.Unlock()
		}}},
		Hooks: kscan.Hooks{TaskExited: func(e *kscan.TaskError) {
			mu.Lock()
			exited = append(exited, e.Unit)
			mu.Unlock()
		}},
		Sleep: func(time.Duration) {},
	})
	require.NoError(t, err)

	kb.Start()
	kb.Wait()
	assert.Equal(t, 0, kb.Running())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint16{0}, pressed)
	assert.ElementsMatch(t, []string{"thumb/ch0", "thumb/ch1", "column/enables", "grid/mux0"}, exited)
}

func TestOverlappingRanges(t *testing.T) {
	doc := `
adc: {driver: sim}
scanners:
  - {name: a, kind: channels, idx_offset: 0, channels: [0, 1, 2]}
  - {name: b, kind: channels, idx_offset: 2, channels: [3]}
`
	_, err := New(load(t, doc), sim.NewADC(), nil, Options{})
	assert.ErrorIs(t, err, core.ErrConfigurationMismatch)
}

func TestAdjacentRangesAllowed(t *testing.T) {
	doc := `
adc: {driver: sim}
scanners:
  - {name: b, kind: channels, idx_offset: 3, channels: [3]}
  - {name: a, kind: channels, idx_offset: 0, channels: [0, 1, 2]}
`
	kb, err := New(load(t, doc), sim.NewADC(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, kb.KeyCount())
}

func TestMissingDrivers(t *testing.T) {
	_, err := New(load(t, layoutYAML), nil, sim.NewGPIO(), Options{})
	assert.ErrorIs(t, err, core.ErrDeviceNotReady)

	_, err = New(load(t, layoutYAML), sim.NewADC(), nil, Options{})
	assert.ErrorIs(t, err, core.ErrDeviceNotReady)
}

func TestMuxValidationSurfaces(t *testing.T) {
	doc := `
adc: {driver: sim}
scanners:
  - kind: muxes
    legs:
      - channel: 0
        mux: {select: [{pin: 0}], idle_channel: 5}
`
	_, err := New(load(t, doc), sim.NewADC(), sim.NewGPIO(), Options{})
	assert.ErrorIs(t, err, core.ErrConfigurationMismatch)
}

func TestFailedScannerReleasesMuxes(t *testing.T) {
	doc := `
adc: {driver: sim}
scanners:
  - name: grid
    kind: muxes
    legs:
      - channel: 0
        mux: {select: [{pin: 0}], enable: {pin: 20, active_low: true}}
  - {name: thumb, kind: channels, idx_offset: 2, channels: [5]}
`
	a := sim.NewADC()
	g := sim.NewGPIO()
	a.SetNotReady(5)

	_, err := New(load(t, doc), a, g, Options{})
	require.ErrorIs(t, err, core.ErrDeviceNotReady)
	assert.True(t, g.IsConfigured(20))
	assert.True(t, g.Level(20), "mux enable released")
	assert.Contains(t, g.Writes(), sim.PinWrite{Pin: 20, Value: false}, "mux was enabled before the failure")
}
