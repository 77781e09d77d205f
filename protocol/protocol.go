// Package protocol implements the framed binary link used to inspect and
// tune the key scanner from a host.
//
// A frame is
//
//	len | 0x10|seq | payload | crc16 | 0x7E
//
// where len counts the whole frame and the CRC covers len, seq and payload.
// The payload is a sequence of messages, each a VLQ message id followed by
// the VLQ encoded parameters declared in the dictionary.
package protocol

// Version is the link protocol version reported by identify.
const Version = "ykb-diag-1"

// Frame layout.
const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 255
	PayloadMax  = FrameMax - FrameMin

	posLen = 0
	posSeq = 1

	SeqMask = 0x0F
	SeqDest = 0x10
	Sync    = 0x7E
)
