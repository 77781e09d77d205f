package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Received is one decoded message.
type Received struct {
	Msg    *Message
	Params Params
}

// Conn sends and receives dictionary messages over a byte stream.
// Send may be called from several goroutines; Recv from one at a time.
type Conn struct {
	rw   io.ReadWriter
	dict *Dictionary

	wmu  sync.Mutex
	seq  uint8
	wbuf []byte

	dec     *Decoder
	rbuf    []byte
	pending []Received

	// idle is waited when a read returns no data and no error, as USB CDC
	// ports on microcontrollers do.
	idle time.Duration
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriter, dict *Dictionary) *Conn {
	return &Conn{
		rw:   rw,
		dict: dict,
		dec:  NewDecoder(),
		rbuf: make([]byte, 256),
		idle: time.Millisecond,
	}
}

// Dictionary returns the message declarations in use.
func (c *Conn) Dictionary() *Dictionary { return c.dict }

// Send encodes one message into its own frame and writes it.
func (c *Conn) Send(name string, p Params) error {
	payload, err := c.dict.Encode(nil, name, p)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.wbuf, err = AppendFrame(c.wbuf[:0], c.seq, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.seq = (c.seq + 1) & SeqMask
	n, err := c.rw.Write(c.wbuf)
	if err != nil {
		return err
	}
	if n != len(c.wbuf) {
		return fmt.Errorf("%s: short write %d/%d: %w", name, n, len(c.wbuf), io.ErrShortWrite)
	}
	return nil
}

// Recv blocks until a message arrives. Corrupt frames and undecodable
// payloads are dropped and counted in Discards.
func (c *Conn) Recv() (Received, error) {
	for {
		if len(c.pending) > 0 {
			r := c.pending[0]
			c.pending = c.pending[1:]
			return r, nil
		}
		if f, ok := c.dec.Next(); ok {
			c.split(f.Payload)
			continue
		}

		n, err := c.rw.Read(c.rbuf)
		if n > 0 {
			c.dec.Feed(c.rbuf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && n > 0 {
				continue
			}
			return Received{}, err
		}
		if n == 0 && c.idle > 0 {
			time.Sleep(c.idle)
		}
	}
}

func (c *Conn) split(payload []byte) {
	for len(payload) > 0 {
		m, p, err := c.dict.Decode(&payload)
		if err != nil {
			c.dec.discards++
			return
		}
		c.pending = append(c.pending, Received{Msg: m, Params: p})
	}
}

// Discards returns the number of frames or payloads thrown away.
// Call it from the goroutine that calls Recv.
func (c *Conn) Discards() int {
	return c.dec.Discards()
}
