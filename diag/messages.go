// Package diag exposes the scanners of a running keyboard half over the
// framed protocol link: identification, threshold get/set/reset and a key
// event trace.
package diag

import (
	"encoding/binary"
	"errors"
	"fmt"

	"ykb/core"
	"ykb/protocol"
)

// Message names.
const (
	MsgIdentify         = "kscan_identify"
	MsgInfo             = "kscan_info"
	MsgScanner          = "kscan_scanner"
	MsgGetThresholds    = "kscan_get_thresholds"
	MsgThresholds       = "kscan_thresholds"
	MsgSetThresholds    = "kscan_set_thresholds"
	MsgDefaultThreshold = "kscan_set_default_thresholds"
	MsgTrace            = "kscan_trace"
	MsgStatus           = "kscan_status"
	MsgKey              = "kscan_key"
)

// Status codes carried by kscan_status.
const (
	StatusOK              = 0
	StatusInvalidArgument = 1
	StatusUnknownScanner  = 2
)

var (
	// ErrUnknownScanner is returned for a scanner index the device lacks.
	ErrUnknownScanner = errors.New("unknown scanner")
	// ErrStatus wraps unexpected status codes.
	ErrStatus = errors.New("device status")
)

// NewDictionary declares the link messages. Host and device share it.
func NewDictionary() *protocol.Dictionary {
	d := protocol.NewDictionary()
	d.MustRegister(MsgIdentify, "")
	d.MustRegister(MsgInfo, "count=%c version=%*s")
	d.MustRegister(MsgScanner, "idx=%c kind=%c offset=%hu keys=%hu name=%*s")
	d.MustRegister(MsgGetThresholds, "idx=%c")
	d.MustRegister(MsgThresholds, "idx=%c values=%*s")
	d.MustRegister(MsgSetThresholds, "idx=%c values=%*s")
	d.MustRegister(MsgDefaultThreshold, "idx=%c")
	d.MustRegister(MsgTrace, "enable=%c")
	d.MustRegister(MsgStatus, "code=%c")
	d.MustRegister(MsgKey, "idx=%hu pressed=%c")
	return d
}

// MaxThresholds is the largest threshold array that fits in one frame.
const MaxThresholds = (protocol.PayloadMax - 8) / 2

// packThresholds encodes thresholds as big-endian 16-bit words.
func packThresholds(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2*i:], v)
	}
	return out
}

func unpackThresholds(b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("odd threshold payload length %d: %w", len(b), core.ErrInvalidArgument)
	}
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return out, nil
}

// statusError maps a status code to an error.
func statusError(code uint32) error {
	switch code {
	case StatusOK:
		return nil
	case StatusInvalidArgument:
		return core.ErrInvalidArgument
	case StatusUnknownScanner:
		return ErrUnknownScanner
	}
	return fmt.Errorf("code %d: %w", code, ErrStatus)
}

func statusCode(err error) uint8 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrUnknownScanner):
		return StatusUnknownScanner
	}
	return StatusInvalidArgument
}
