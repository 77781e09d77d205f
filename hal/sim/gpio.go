package sim

import (
	"errors"
	"sync"

	"ykb/core"
)

// ErrPinFault is a convenience error for injected GPIO failures.
var ErrPinFault = errors.New("sim: pin fault")

// PinWrite records one SetPin call.
type PinWrite struct {
	Pin   core.GPIOPin
	Value bool
}

// GPIO is a core.GPIODriver that keeps pin levels in memory and records
// every write.
type GPIO struct {
	mu            sync.Mutex
	levels        map[core.GPIOPin]bool
	configured    map[core.GPIOPin]bool
	failConfigure map[core.GPIOPin]error
	failSet       map[core.GPIOPin]failure
	writes        []PinWrite
	onWrite       func(PinWrite)
}

type failure struct {
	err   error
	after int // successful writes allowed before failing
}

// NewGPIO returns a GPIO driver with every pin low and unconfigured.
func NewGPIO() *GPIO {
	return &GPIO{
		levels:        make(map[core.GPIOPin]bool),
		configured:    make(map[core.GPIOPin]bool),
		failConfigure: make(map[core.GPIOPin]error),
		failSet:       make(map[core.GPIOPin]failure),
	}
}

// FailConfigure makes ConfigureOutput fail for pin.
func (g *GPIO) FailConfigure(pin core.GPIOPin, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failConfigure[pin] = err
}

// FailSet makes SetPin fail for pin after `after` more successful writes.
func (g *GPIO) FailSet(pin core.GPIOPin, after int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSet[pin] = failure{err: err, after: after}
}

// ClearFailures removes all injected SetPin failures.
func (g *GPIO) ClearFailures() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSet = make(map[core.GPIOPin]failure)
}

// OnWrite registers a hook called after every successful write.
// Must be set before the driver is shared with running goroutines.
func (g *GPIO) OnWrite(fn func(PinWrite)) {
	g.onWrite = fn
}

// Level returns the current level of pin.
func (g *GPIO) Level(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// IsConfigured reports whether pin was configured as an output.
func (g *GPIO) IsConfigured(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.configured[pin]
}

// Writes returns a copy of the write log.
func (g *GPIO) Writes() []PinWrite {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PinWrite(nil), g.writes...)
}

// ConfigureOutput implements core.GPIODriver.
func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failConfigure[pin]; ok {
		return err
	}
	g.configured[pin] = true
	g.levels[pin] = false
	return nil
}

// SetPin implements core.GPIODriver.
func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	if f, ok := g.failSet[pin]; ok {
		if f.after <= 0 {
			g.mu.Unlock()
			return f.err
		}
		f.after--
		g.failSet[pin] = f
	}
	g.levels[pin] = value
	w := PinWrite{Pin: pin, Value: value}
	g.writes = append(g.writes, w)
	hook := g.onWrite
	g.mu.Unlock()

	if hook != nil {
		hook(w)
	}
	return nil
}

// GetPin implements core.GPIODriver.
func (g *GPIO) GetPin(pin core.GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin], nil
}
