package diag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"ykb/kbhandler"
	"ykb/kscan"
	"ykb/protocol"
)

// ErrClosed is returned once the link has failed.
var ErrClosed = errors.New("diagnostic link closed")

// DefaultTimeout bounds each request when the context has no deadline.
const DefaultTimeout = 2 * time.Second

// ScannerInfo describes one scanner of the device.
type ScannerInfo struct {
	Index  uint8
	Name   string
	Kind   kscan.Kind
	Offset uint16
	Keys   uint16
}

// Info is the identify reply.
type Info struct {
	Version  string
	Scanners []ScannerInfo
}

// Client talks to a Server. Requests are serialized.
type Client struct {
	conn    *protocol.Conn
	timeout time.Duration

	reqMu   sync.Mutex
	replies chan protocol.Received
	events  chan kbhandler.Event
	dropped atomic.Uint32

	done chan struct{}
	err  error
}

// NewClient starts reading from rw. The client does not close rw.
func NewClient(rw io.ReadWriter) *Client {
	c := &Client{
		conn:    protocol.NewConn(rw, NewDictionary()),
		timeout: DefaultTimeout,
		replies: make(chan protocol.Received, 32),
		events:  make(chan kbhandler.Event, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		r, err := c.conn.Recv()
		if err != nil {
			c.err = err
			return
		}
		if r.Msg.Name == MsgKey {
			ev := kbhandler.Event{Kind: kbhandler.Release, Index: uint16(r.Params.Uint("idx"))}
			if r.Params.Uint("pressed") != 0 {
				ev.Kind = kbhandler.Press
			}
			select {
			case c.events <- ev:
			default:
				c.dropped.Add(1)
			}
			continue
		}
		select {
		case c.replies <- r:
		default:
			// Nobody is waiting for this many replies; they are stale.
		}
	}
}

// Events delivers traced key events. Enable them with Trace.
func (c *Client) Events() <-chan kbhandler.Event { return c.events }

// DroppedEvents returns how many traced events were not consumed in time.
func (c *Client) DroppedEvents() uint32 { return c.dropped.Load() }

// Done is closed when the link fails.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the read error that closed the link.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// await returns the next reply named one of want. Other replies are stale
// answers to abandoned requests and are skipped.
func (c *Client) await(ctx context.Context, want ...string) (protocol.Received, error) {
	for {
		select {
		case r := <-c.replies:
			for _, w := range want {
				if r.Msg.Name == w {
					return r, nil
				}
			}
		case <-c.done:
			return protocol.Received{}, fmt.Errorf("%w: %w", ErrClosed, c.err)
		case <-ctx.Done():
			return protocol.Received{}, ctx.Err()
		}
	}
}

func (c *Client) request(ctx context.Context, name string, p protocol.Params) (context.Context, context.CancelFunc, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	if err := c.conn.Send(name, p); err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, cancel, nil
}

// Identify lists the scanners of the device.
func (c *Client) Identify(ctx context.Context) (Info, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	ctx, cancel, err := c.request(ctx, MsgIdentify, nil)
	if err != nil {
		return Info{}, err
	}
	defer cancel()

	r, err := c.await(ctx, MsgInfo)
	if err != nil {
		return Info{}, err
	}
	info := Info{Version: string(r.Params.Bytes("version"))}
	count := int(r.Params.Uint("count"))
	for len(info.Scanners) < count {
		r, err := c.await(ctx, MsgScanner)
		if err != nil {
			return Info{}, err
		}
		info.Scanners = append(info.Scanners, ScannerInfo{
			Index:  uint8(r.Params.Uint("idx")),
			Name:   string(r.Params.Bytes("name")),
			Kind:   kscan.Kind(r.Params.Uint("kind")),
			Offset: uint16(r.Params.Uint("offset")),
			Keys:   uint16(r.Params.Uint("keys")),
		})
	}
	return info, nil
}

// Thresholds reads the thresholds of scanner idx.
func (c *Client) Thresholds(ctx context.Context, idx uint8) ([]uint16, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	ctx, cancel, err := c.request(ctx, MsgGetThresholds, protocol.Params{"idx": idx})
	if err != nil {
		return nil, err
	}
	defer cancel()

	r, err := c.await(ctx, MsgThresholds, MsgStatus)
	if err != nil {
		return nil, err
	}
	if r.Msg.Name == MsgStatus {
		if err := statusError(r.Params.Uint("code")); err != nil {
			return nil, fmt.Errorf("scanner %d: %w", idx, err)
		}
		return nil, fmt.Errorf("scanner %d: status without thresholds: %w", idx, ErrStatus)
	}
	return unpackThresholds(r.Params.Bytes("values"))
}

// SetThresholds replaces the thresholds of scanner idx.
func (c *Client) SetThresholds(ctx context.Context, idx uint8, values []uint16) error {
	if len(values) > MaxThresholds {
		return fmt.Errorf("%d thresholds (max %d): %w", len(values), MaxThresholds, protocol.ErrFrameTooLong)
	}
	return c.statusRequest(ctx, MsgSetThresholds, protocol.Params{
		"idx":    idx,
		"values": packThresholds(values),
	})
}

// ResetThresholds restores the default thresholds of scanner idx.
func (c *Client) ResetThresholds(ctx context.Context, idx uint8) error {
	return c.statusRequest(ctx, MsgDefaultThreshold, protocol.Params{"idx": idx})
}

// Trace turns key event forwarding on or off.
func (c *Client) Trace(ctx context.Context, enable bool) error {
	return c.statusRequest(ctx, MsgTrace, protocol.Params{"enable": enable})
}

func (c *Client) statusRequest(ctx context.Context, name string, p protocol.Params) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	ctx, cancel, err := c.request(ctx, name, p)
	if err != nil {
		return err
	}
	defer cancel()

	r, err := c.await(ctx, MsgStatus)
	if err != nil {
		return err
	}
	if err := statusError(r.Params.Uint("code")); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
