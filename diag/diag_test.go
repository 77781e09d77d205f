package diag

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ykb/core"
	"ykb/hal/sim"
	"ykb/kbhandler"
	"ykb/kscan"
	"ykb/protocol"
)

type board []kscan.Backend

func (b board) Scanners() []kscan.Backend { return b }

func newBoard(t *testing.T) board {
	t.Helper()
	a := sim.NewADC()
	thumb, err := kscan.NewChannels(a, nil, kscan.ChannelsConfig{
		Channels:          []core.ADCChannelID{0, 1, 2},
		DefaultThresholds: []uint16{400, 500, 600},
	}, kscan.WithName("thumb"))
	require.NoError(t, err)
	col, err := kscan.NewEnables(a, sim.NewGPIO(), nil, kscan.EnablesConfig{
		Channel:           3,
		Enables:           []core.GPIOLine{{Pin: 1}, {Pin: 2}},
		IdxOffset:         3,
		DefaultThresholds: []uint16{700, 700},
	}, kscan.WithName("column"))
	require.NoError(t, err)
	return board{thumb, col}
}

func setup(t *testing.T) (*Server, *Client, board) {
	t.Helper()
	dev, host := net.Pipe()
	t.Cleanup(func() {
		dev.Close()
		host.Close()
	})

	b := newBoard(t)
	srv := NewServer(dev, b, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)

	return srv, NewClient(host), b
}

func TestIdentify(t *testing.T) {
	_, c, _ := setup(t)

	info, err := c.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.Version, info.Version)
	assert.Equal(t, []ScannerInfo{
		{Index: 0, Name: "thumb", Kind: kscan.KindChannels, Offset: 0, Keys: 3},
		{Index: 1, Name: "column", Kind: kscan.KindEnables, Offset: 3, Keys: 2},
	}, info.Scanners)
}

func TestThresholdRoundTrip(t *testing.T) {
	_, c, b := setup(t)
	ctx := context.Background()

	got, err := c.Thresholds(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{400, 500, 600}, got)

	require.NoError(t, c.SetThresholds(ctx, 0, []uint16{1, 1023, 300}))
	local := make([]uint16, 3)
	require.NoError(t, b[0].GetThresholds(local))
	assert.Equal(t, []uint16{1, 1023, 300}, local)

	require.NoError(t, c.ResetThresholds(ctx, 0))
	got, err = c.Thresholds(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{400, 500, 600}, got)
}

func TestStatusErrors(t *testing.T) {
	_, c, b := setup(t)
	ctx := context.Background()

	_, err := c.Thresholds(ctx, 5)
	assert.ErrorIs(t, err, ErrUnknownScanner)
	assert.ErrorIs(t, c.ResetThresholds(ctx, 9), ErrUnknownScanner)

	err = c.SetThresholds(ctx, 1, []uint16{500})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	err = c.SetThresholds(ctx, 1, []uint16{500, 0})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	local := make([]uint16, 2)
	require.NoError(t, b[1].GetThresholds(local))
	assert.Equal(t, []uint16{700, 700}, local, "rejected set leaves thresholds alone")

	err = c.SetThresholds(ctx, 1, make([]uint16, MaxThresholds+1))
	assert.ErrorIs(t, err, protocol.ErrFrameTooLong)
}

func TestTrace(t *testing.T) {
	srv, c, _ := setup(t)
	ctx := context.Background()
	sink := srv.KeySink()

	// Not forwarded while tracing is off.
	sink(kbhandler.Event{Kind: kbhandler.Press, Index: 1})

	require.NoError(t, c.Trace(ctx, true))
	assert.True(t, srv.Tracing())

	sink(kbhandler.Event{Kind: kbhandler.Press, Index: 4})
	sink(kbhandler.Event{Kind: kbhandler.Release, Index: 4})

	for _, want := range []kbhandler.Event{{Kind: kbhandler.Press, Index: 4}, {Kind: kbhandler.Release, Index: 4}} {
		select {
		case ev := <-c.Events():
			assert.Equal(t, want, ev)
		case <-time.After(time.Second):
			t.Fatal("no key event")
		}
	}

	require.NoError(t, c.Trace(ctx, false))
	assert.False(t, srv.Tracing())
}

func TestClientSeesLinkFailure(t *testing.T) {
	dev, host := net.Pipe()
	c := NewClient(host)
	dev.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client did not notice closed link")
	}
	assert.Error(t, c.Err())

	_, err := c.Identify(context.Background())
	assert.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	dev, host := net.Pipe()
	defer dev.Close()
	defer host.Close()

	// Drain requests without answering.
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := dev.Read(buf); err != nil {
				return
			}
		}
	}()

	c := NewClient(host)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Thresholds(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
