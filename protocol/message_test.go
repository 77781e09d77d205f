package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testDictionary(t *testing.T) *Dictionary {
	t.Helper()
	d := NewDictionary()
	d.MustRegister("ping", "")
	d.MustRegister("set", "idx=%c offset=%hu count=%u delta=%i values=%*s")
	return d
}

func TestDictionaryRoundTrip(t *testing.T) {
	d := testDictionary(t)

	buf, err := d.Encode(nil, "set", Params{
		"idx":    uint8(2),
		"offset": uint16(300),
		"count":  70000,
		"delta":  int32(-5),
		"values": []byte{0x01, 0xF4},
	})
	if err != nil {
		t.Fatal(err)
	}
	buf, err = d.Encode(buf, "ping", nil)
	if err != nil {
		t.Fatal(err)
	}

	m, p, err := d.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "set" || m.ID != 1 {
		t.Errorf("decoded %s/%d", m.Name, m.ID)
	}
	if p.Uint("idx") != 2 || p.Uint("offset") != 300 || p.Uint("count") != 70000 {
		t.Errorf("params %v", p)
	}
	if int32(p.Uint("delta")) != -5 {
		t.Errorf("delta %d", int32(p.Uint("delta")))
	}
	if !bytes.Equal(p.Bytes("values"), []byte{0x01, 0xF4}) {
		t.Errorf("values %v", p.Bytes("values"))
	}

	m, _, err = d.Decode(&buf)
	if err != nil || m.Name != "ping" {
		t.Errorf("second message %v, %v", m, err)
	}
	if len(buf) != 0 {
		t.Errorf("%d bytes left", len(buf))
	}
}

func TestDictionaryTruncatesNarrowTypes(t *testing.T) {
	d := testDictionary(t)
	buf, err := d.Encode(nil, "set", Params{
		"idx": 0x1FF, "offset": 0x12345, "count": 0, "delta": 0, "values": []byte{},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, p, err := d.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if p.Uint("idx") != 0xFF || p.Uint("offset") != 0x2345 {
		t.Errorf("params %v", p)
	}
}

func TestDictionaryErrors(t *testing.T) {
	d := testDictionary(t)

	if _, err := d.Encode(nil, "nope", nil); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("unknown name: %v", err)
	}
	if _, err := d.Encode(nil, "set", Params{"idx": 1}); !errors.Is(err, ErrMissingParam) {
		t.Errorf("missing param: %v", err)
	}
	if _, err := d.Encode(nil, "set", Params{"idx": "x", "offset": 1, "count": 1, "delta": 1, "values": []byte{}}); !errors.Is(err, ErrBadFormat) {
		t.Errorf("bad type: %v", err)
	}

	buf := AppendVLQUint(nil, 99)
	if _, _, err := d.Decode(&buf); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("unknown id: %v", err)
	}

	if _, err := d.Register("ping", ""); !errors.Is(err, ErrBadFormat) {
		t.Errorf("duplicate: %v", err)
	}
	if _, err := d.Register("bad", "idx=%f"); !errors.Is(err, ErrBadFormat) {
		t.Errorf("bad verb: %v", err)
	}
	if _, err := d.Register("bad2", "idx"); !errors.Is(err, ErrBadFormat) {
		t.Errorf("bad field: %v", err)
	}
}

func TestDictionaryString(t *testing.T) {
	d := testDictionary(t)
	want := "ping\nset idx=%c offset=%hu count=%u delta=%i values=%*s\n"
	if got := d.String(); got != want {
		t.Errorf("String() = %q", got)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d", d.Len())
	}
	if m, ok := d.Lookup("set"); !ok || !strings.HasPrefix(m.String(), "set idx=") {
		t.Errorf("Lookup(set) = %v, %v", m, ok)
	}
}
