package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrBadFormat      = errors.New("bad message format")
	ErrMissingParam   = errors.New("missing parameter")
)

// ParamType is the wire type of one message parameter.
type ParamType uint8

const (
	TypeUint8  ParamType = iota // %c
	TypeUint16                  // %hu
	TypeUint32                  // %u
	TypeInt32                   // %i
	TypeBytes                   // %*s
)

var formatTypes = map[string]ParamType{
	"%c":  TypeUint8,
	"%hu": TypeUint16,
	"%u":  TypeUint32,
	"%i":  TypeInt32,
	"%*s": TypeBytes,
}

// Param is one named parameter of a message.
type Param struct {
	Name string
	Type ParamType
}

// Message is a declared message: an id, a name and its parameters.
type Message struct {
	ID     uint16
	Name   string
	Format string
	Params []Param
}

// String returns the dictionary line for the message.
func (m *Message) String() string {
	if m.Format == "" {
		return m.Name
	}
	return m.Name + " " + m.Format
}

func parseFormat(format string) ([]Param, error) {
	var params []Param
	for _, field := range strings.Fields(format) {
		name, verb, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: %w", field, ErrBadFormat)
		}
		typ, ok := formatTypes[verb]
		if !ok {
			return nil, fmt.Errorf("%q: %w", field, ErrBadFormat)
		}
		params = append(params, Param{Name: name, Type: typ})
	}
	return params, nil
}

// Params holds decoded parameter values: uint32 for integer types (int32
// values are stored as their two's complement) and []byte for TypeBytes.
type Params map[string]any

// Uint returns an integer parameter, or 0 when absent.
func (p Params) Uint(name string) uint32 {
	v, _ := p[name].(uint32)
	return v
}

// Bytes returns a byte string parameter, or nil when absent.
func (p Params) Bytes(name string) []byte {
	v, _ := p[name].([]byte)
	return v
}

// Append encodes the message id and params.
func (m *Message) Append(dst []byte, p Params) ([]byte, error) {
	dst = AppendVLQUint(dst, uint32(m.ID))
	for _, param := range m.Params {
		v, ok := p[param.Name]
		if !ok {
			return dst, fmt.Errorf("%s %s: %w", m.Name, param.Name, ErrMissingParam)
		}
		if param.Type == TypeBytes {
			b, ok := v.([]byte)
			if !ok {
				return dst, fmt.Errorf("%s %s: want []byte, got %T: %w", m.Name, param.Name, v, ErrBadFormat)
			}
			dst = AppendVLQBytes(dst, b)
			continue
		}
		n, err := toUint32(v)
		if err != nil {
			return dst, fmt.Errorf("%s %s: %w", m.Name, param.Name, err)
		}
		dst = AppendVLQUint(dst, param.Type.truncate(n))
	}
	return dst, nil
}

// decodeParams decodes the parameters following the message id.
func (m *Message) decodeParams(data *[]byte) (Params, error) {
	p := make(Params, len(m.Params))
	for _, param := range m.Params {
		if param.Type == TypeBytes {
			b, err := DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", m.Name, param.Name, err)
			}
			p[param.Name] = append([]byte(nil), b...)
			continue
		}
		v, err := DecodeVLQUint(data)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", m.Name, param.Name, err)
		}
		p[param.Name] = param.Type.truncate(v)
	}
	return p, nil
}

func (t ParamType) truncate(v uint32) uint32 {
	switch t {
	case TypeUint8:
		return v & 0xFF
	case TypeUint16:
		return v & 0xFFFF
	}
	return v
}

func toUint32(v any) (uint32, error) {
	switch n := v.(type) {
	case uint8:
		return uint32(n), nil
	case uint16:
		return uint32(n), nil
	case uint32:
		return n, nil
	case int:
		return uint32(n), nil
	case int32:
		return uint32(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported value type %T: %w", v, ErrBadFormat)
}

// Dictionary maps message ids and names to declarations. Both ends of a
// link must build it from the same declarations in the same order.
type Dictionary struct {
	byID   []*Message
	byName map[string]*Message
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{byName: make(map[string]*Message)}
}

// Register declares a message. Ids are assigned in registration order.
func (d *Dictionary) Register(name, format string) (*Message, error) {
	if _, ok := d.byName[name]; ok {
		return nil, fmt.Errorf("%s registered twice: %w", name, ErrBadFormat)
	}
	params, err := parseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	m := &Message{ID: uint16(len(d.byID)), Name: name, Format: format, Params: params}
	d.byID = append(d.byID, m)
	d.byName[name] = m
	return m, nil
}

// MustRegister is Register for static declarations.
func (d *Dictionary) MustRegister(name, format string) *Message {
	m, err := d.Register(name, format)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup finds a message by name.
func (d *Dictionary) Lookup(name string) (*Message, bool) {
	m, ok := d.byName[name]
	return m, ok
}

// Len returns the number of declared messages.
func (d *Dictionary) Len() int { return len(d.byID) }

// String renders one declaration per line, in id order.
func (d *Dictionary) String() string {
	var sb strings.Builder
	for _, m := range d.byID {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Decode reads one message from data and advances past it.
func (d *Dictionary) Decode(data *[]byte) (*Message, Params, error) {
	id, err := DecodeVLQUint(data)
	if err != nil {
		return nil, nil, err
	}
	if int(id) >= len(d.byID) {
		return nil, nil, fmt.Errorf("id %d: %w", id, ErrUnknownMessage)
	}
	m := d.byID[id]
	p, err := m.decodeParams(data)
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// Encode appends the named message.
func (d *Dictionary) Encode(dst []byte, name string, p Params) ([]byte, error) {
	m, ok := d.byName[name]
	if !ok {
		return dst, fmt.Errorf("%s: %w", name, ErrUnknownMessage)
	}
	return m.Append(dst, p)
}
