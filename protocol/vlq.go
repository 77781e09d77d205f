package protocol

import "errors"

var (
	ErrInvalidVLQ = errors.New("invalid VLQ encoding")
	ErrShortData  = errors.New("not enough data")
)

// AppendVLQ appends v in the variable length encoding: 7 bits per byte,
// most significant group first, continuation in bit 7. Values in
// [-32, 96) take one byte.
func AppendVLQ(dst []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// AppendVLQUint appends an unsigned value.
func AppendVLQUint(dst []byte, v uint32) []byte {
	return AppendVLQ(dst, int32(v))
}

// AppendVLQBytes appends a length prefixed byte string.
func AppendVLQBytes(dst []byte, b []byte) []byte {
	dst = AppendVLQUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// DecodeVLQ decodes one value and advances data past it.
func DecodeVLQ(data *[]byte) (int32, error) {
	d := *data
	if len(d) == 0 {
		return 0, ErrShortData
	}
	c := uint32(d[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i == len(d) {
			return 0, ErrShortData
		}
		if i == 5 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(d[i])
		i++
		v = v<<7 | c&0x7F
	}
	*data = d[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes one unsigned value.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQ(data)
	return uint32(v), err
}

// DecodeVLQBytes decodes a length prefixed byte string. The result aliases
// data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	rest := *data
	n, err := DecodeVLQUint(&rest)
	if err != nil {
		return nil, err
	}
	if uint32(len(rest)) < n {
		return nil, ErrShortData
	}
	*data = rest[n:]
	return rest[:n], nil
}
