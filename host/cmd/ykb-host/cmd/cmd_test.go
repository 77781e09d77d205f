package cmd

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ykb/config"
	"ykb/diag"
	"ykb/keyboard"
	"ykb/kscan"
)

func TestParseThresholds(t *testing.T) {
	got, err := parseThresholds("480, 480,520")
	require.NoError(t, err)
	assert.Equal(t, []uint16{480, 480, 520}, got)
	assert.Equal(t, "480,480,520", formatThresholds(got))

	_, err = parseThresholds("480,x")
	assert.Error(t, err)
	_, err = parseThresholds("70000")
	assert.Error(t, err)

	idx, err := parseScanner("3")
	require.NoError(t, err)
	assert.Equal(t, uint8(3), idx)
	_, err = parseScanner("300")
	assert.Error(t, err)
}

type edges struct {
	mu      sync.Mutex
	presses map[uint16]int
}

func (e *edges) listener() kscan.Listener {
	return kscan.Listener{OnPress: func(i uint16) {
		e.mu.Lock()
		e.presses[i]++
		e.mu.Unlock()
	}}
}

func (e *edges) pressed(i uint16) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presses[i] > 0
}

func startSim(t *testing.T, layout *config.Layout, e *edges) (*simBoard, *keyboard.Keyboard) {
	t.Helper()
	b := newSimBoard(7)
	kb, err := keyboard.New(layout, b.adc, b.gpio, keyboard.Options{
		Listeners: []kscan.Listener{e.listener()},
	})
	require.NoError(t, err)
	b.attach(layout, kb)
	kb.Start()
	return b, kb
}

func TestSimBoardRoutesKeys(t *testing.T) {
	layout := config.Default()
	layout.ADC.Driver = config.ADCSim
	e := &edges{presses: map[uint16]int{}}
	b, kb := startSim(t, layout, e)
	assert.Len(t, b.keys, kb.KeyCount())

	// 1 is a direct key, 11 sits behind the mux.
	for _, idx := range []uint16{1, 11} {
		b.Press(int(idx), true)
		require.Eventually(t, func() bool { return e.pressed(idx) }, 2*time.Second, time.Millisecond, "key %d", idx)
	}
	assert.False(t, e.pressed(0))
	assert.False(t, e.pressed(10))
}

func TestSimBoardEnables(t *testing.T) {
	layout, err := config.Load([]byte(`
adc: {driver: sim}
scanners:
  - kind: enables
    idx_offset: 4
    settle: 0s
    channel: 1
    enables: [{pin: 3}, {pin: 4, active_low: true}]
`))
	require.NoError(t, err)
	e := &edges{presses: map[uint16]int{}}
	b, _ := startSim(t, layout, e)

	b.Press(5, true)
	require.Eventually(t, func() bool { return e.pressed(5) }, 2*time.Second, time.Millisecond)
	assert.False(t, e.pressed(4))
}

func TestDiagListener(t *testing.T) {
	layout := config.Default()
	layout.ADC.Driver = config.ADCSim
	e := &edges{presses: map[uint16]int{}}
	_, kb := startSim(t, layout, e)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	d := &diagListener{ln: ln, kb: kb}
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	c := diag.NewClient(conn)

	info, err := c.Identify(ctx)
	require.NoError(t, err)
	require.Len(t, info.Scanners, 2)
	assert.Equal(t, "thumb", info.Scanners[0].Name)
	assert.Equal(t, uint16(16), info.Scanners[1].Keys)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
