package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrFrameTooLong is returned when a payload does not fit in one frame.
var ErrFrameTooLong = errors.New("frame too long")

// AppendFrame wraps payload in a frame with sequence number seq.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return dst, fmt.Errorf("%d byte payload (max %d): %w", len(payload), PayloadMax, ErrFrameTooLong)
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+FrameMin), SeqDest|seq&SeqMask)
	dst = append(dst, payload...)
	dst = appendCRC(dst, CRC16(dst[start:]))
	return append(dst, Sync), nil
}

// Frame is a decoded frame.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// Decoder splits a byte stream into frames. Corrupt input is skipped up
// to the next sync byte.
type Decoder struct {
	buf      []byte
	synced   bool
	discards int
}

// NewDecoder returns a decoder that starts synchronized.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Feed appends received bytes.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Discards returns how many times the decoder lost synchronization.
func (d *Decoder) Discards() int {
	return d.discards
}

// Next returns the next complete frame, if any. The payload is a copy.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := bytes.IndexByte(d.buf, Sync)
			if i < 0 {
				d.buf = d.buf[:0]
				return Frame{}, false
			}
			d.buf = d.buf[i+1:]
			d.synced = true
			continue
		}

		if d.buf[0] == Sync {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < FrameMin {
			return Frame{}, false
		}

		n := int(d.buf[posLen])
		seq := d.buf[posSeq]
		if n < FrameMin || seq&^SeqMask != SeqDest {
			d.desync()
			continue
		}
		if len(d.buf) < n {
			return Frame{}, false
		}
		if d.buf[n-1] != Sync {
			d.desync()
			continue
		}
		crc := uint16(d.buf[n-TrailerSize])<<8 | uint16(d.buf[n-TrailerSize+1])
		if crc != CRC16(d.buf[:n-TrailerSize]) {
			d.desync()
			continue
		}

		f := Frame{
			Seq:     seq & SeqMask,
			Payload: append([]byte(nil), d.buf[HeaderSize:n-TrailerSize]...),
		}
		d.buf = d.buf[n:]
		return f, true
	}
	return Frame{}, false
}

func (d *Decoder) desync() {
	d.synced = false
	d.discards++
	// Drop the bad length byte so the sync search moves forward.
	d.buf = d.buf[1:]
}
