package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func mustFrame(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	f, err := AppendFrame(nil, seq, payload)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestAppendFrameLayout(t *testing.T) {
	f := mustFrame(t, 3, []byte{0xAA, 0xBB})

	if len(f) != 7 || f[0] != 7 {
		t.Fatalf("frame %v: bad length", f)
	}
	if f[1] != SeqDest|3 {
		t.Errorf("seq byte 0x%02X", f[1])
	}
	crc := CRC16(f[:4])
	if f[4] != byte(crc>>8) || f[5] != byte(crc) {
		t.Errorf("crc bytes %02X %02X, want %04X", f[4], f[5], crc)
	}
	if f[6] != Sync {
		t.Errorf("trailer 0x%02X", f[6])
	}
}

func TestAppendFrameTooLong(t *testing.T) {
	if _, err := AppendFrame(nil, 0, make([]byte, PayloadMax+1)); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("err = %v", err)
	}
	if _, err := AppendFrame(nil, 0, make([]byte, PayloadMax)); err != nil {
		t.Errorf("max payload rejected: %v", err)
	}
}

func TestDecoderSplitsStream(t *testing.T) {
	var stream []byte
	stream = append(stream, mustFrame(t, 0, []byte{1})...)
	stream = append(stream, mustFrame(t, 1, []byte{2, 3})...)
	stream = append(stream, mustFrame(t, 2, nil)...)

	d := NewDecoder()
	// Feed byte by byte to exercise partial frames.
	var frames []Frame
	for _, b := range stream {
		d.Feed([]byte{b})
		for {
			f, ok := d.Next()
			if !ok {
				break
			}
			frames = append(frames, f)
		}
	}

	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	if !bytes.Equal(frames[1].Payload, []byte{2, 3}) || frames[1].Seq != 1 {
		t.Errorf("frame 1 = %+v", frames[1])
	}
	if len(frames[2].Payload) != 0 {
		t.Errorf("frame 2 = %+v", frames[2])
	}
	if d.Discards() != 0 {
		t.Errorf("discards = %d", d.Discards())
	}
}

func TestDecoderResyncsAfterCorruption(t *testing.T) {
	bad := mustFrame(t, 0, []byte{9, 9, 9})
	bad[3] ^= 0xFF // breaks the CRC

	var stream []byte
	stream = append(stream, 0x00, 0x42) // line noise
	stream = append(stream, bad...)
	stream = append(stream, mustFrame(t, 1, []byte{7})...)

	d := NewDecoder()
	d.Feed(stream)

	f, ok := d.Next()
	if !ok {
		t.Fatal("good frame after corruption was not recovered")
	}
	if !bytes.Equal(f.Payload, []byte{7}) {
		t.Errorf("payload %v", f.Payload)
	}
	if _, ok := d.Next(); ok {
		t.Error("unexpected extra frame")
	}
	if d.Discards() == 0 {
		t.Error("corruption not counted")
	}
}
