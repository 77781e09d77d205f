package core

import (
	"errors"
	"testing"
)

// mockGPIO is a test implementation of GPIODriver
type mockGPIO struct {
	pins       map[GPIOPin]bool
	configured map[GPIOPin]bool
	failSet    error
	failGet    error
}

func newMockGPIO() *mockGPIO {
	return &mockGPIO{
		pins:       make(map[GPIOPin]bool),
		configured: make(map[GPIOPin]bool),
	}
}

func (m *mockGPIO) ConfigureOutput(pin GPIOPin) error {
	m.configured[pin] = true
	m.pins[pin] = false
	return nil
}

func (m *mockGPIO) SetPin(pin GPIOPin, value bool) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.pins[pin] = value
	return nil
}

func (m *mockGPIO) GetPin(pin GPIOPin) (bool, error) {
	if m.failGet != nil {
		return false, m.failGet
	}
	return m.pins[pin], nil
}

func TestGPIOLineLevels(t *testing.T) {
	high := GPIOLine{Pin: 4}
	low := GPIOLine{Pin: 5, ActiveLow: true}

	if !high.Level(true) || high.Level(false) {
		t.Error("active-high line: active must be high")
	}
	if low.Level(true) || !low.Level(false) {
		t.Error("active-low line: active must be low")
	}
}

func TestGPIOLineConfigureInactive(t *testing.T) {
	d := newMockGPIO()
	lines := []GPIOLine{{Pin: 1}, {Pin: 2, ActiveLow: true}}

	for _, l := range lines {
		if err := l.ConfigureInactive(d); err != nil {
			t.Fatalf("ConfigureInactive(%s): %v", l, err)
		}
	}

	if !d.configured[1] || !d.configured[2] {
		t.Error("both pins should be outputs")
	}
	if d.pins[1] {
		t.Error("gpio1 should idle low")
	}
	if !d.pins[2] {
		t.Error("active-low gpio2 should idle high")
	}

	if err := lines[1].Set(d, true); err != nil {
		t.Fatal(err)
	}
	if d.pins[2] {
		t.Error("asserting gpio2 should drive it low")
	}
}

func TestGPIOLineSetError(t *testing.T) {
	d := newMockGPIO()
	d.failSet = errors.New("bus fault")
	if err := (GPIOLine{Pin: 9}).Set(d, true); err == nil {
		t.Error("expected SetPin error to be returned")
	}
}

func TestGPIOLineString(t *testing.T) {
	if s := (GPIOLine{Pin: 7}).String(); s != "gpio7" {
		t.Errorf("String() = %q", s)
	}
	if s := (GPIOLine{Pin: 7, ActiveLow: true}).String(); s != "gpio7(active-low)" {
		t.Errorf("String() = %q", s)
	}
}

func TestGPIOLineActive(t *testing.T) {
	d := newMockGPIO()
	low := GPIOLine{Pin: 3, ActiveLow: true}
	if err := low.ConfigureInactive(d); err != nil {
		t.Fatal(err)
	}

	if on, err := low.Active(d); err != nil || on {
		t.Errorf("Active() = %v, %v; want false, nil", on, err)
	}
	if err := low.Set(d, true); err != nil {
		t.Fatal(err)
	}
	if on, err := low.Active(d); err != nil || !on {
		t.Errorf("Active() = %v, %v; want true, nil", on, err)
	}

	d.failGet = errors.New("bus fault")
	if _, err := low.Active(d); err == nil {
		t.Error("expected GetPin error to be returned")
	}
}

func TestMustGPIO(t *testing.T) {
	SetGPIODriver(nil)
	defer SetGPIODriver(nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("MustGPIO should panic without a driver")
			}
		}()
		MustGPIO()
	}()

	d := newMockGPIO()
	SetGPIODriver(d)
	line := GPIOLine{Pin: 6}
	if err := line.ConfigureInactive(MustGPIO()); err != nil {
		t.Fatal(err)
	}
	if err := line.Set(MustGPIO(), true); err != nil {
		t.Fatal(err)
	}
	if on, err := line.Active(MustGPIO()); err != nil || !on {
		t.Errorf("Active() = %v, %v; want true, nil", on, err)
	}
}
