package kscan

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ykb/core"
)

// base carries what every backend shares: identity, thresholds, the
// listener registry and bookkeeping for the scanning goroutines.
type base struct {
	name      string
	kind      Kind
	idxOffset uint16
	settle    time.Duration
	th        *Thresholds
	reg       *Registry
	log       *slog.Logger
	hooks     Hooks
	sleep     func(time.Duration)

	start   sync.Once
	wg      sync.WaitGroup
	running atomic.Int32
}

func newBase(kind Kind, idxOffset uint16, settle time.Duration, defaults []uint16, reg *Registry, opts []Option) (*base, error) {
	th, err := NewThresholds(defaults)
	if err != nil {
		return nil, err
	}
	if int(idxOffset)+len(defaults) > 0x10000 {
		return nil, errorf(ErrConfigurationMismatch, "index offset %d plus %d keys overflows the key index", idxOffset, len(defaults))
	}
	b := &base{
		name:      kind.String(),
		kind:      kind,
		idxOffset: idxOffset,
		settle:    settle,
		th:        th,
		reg:       reg,
		log:       core.Logger(),
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("kscan", b.name)
	return b, nil
}

// Name returns the backend name.
func (b *base) Name() string { return b.name }

// Kind returns the backend hardware shape.
func (b *base) Kind() Kind { return b.kind }

// SetThresholds implements Scanner.
func (b *base) SetThresholds(values []uint16) error { return b.th.Set(values) }

// GetThresholds implements Scanner.
func (b *base) GetThresholds(out []uint16) error { return b.th.Get(out) }

// SetDefaultThresholds implements Scanner.
func (b *base) SetDefaultThresholds() { b.th.Reset() }

// KeyAmount implements Scanner.
func (b *base) KeyAmount() uint16 { return uint16(b.th.Len()) }

// IdxOffset implements Scanner.
func (b *base) IdxOffset() uint16 { return b.idxOffset }

// Running returns the number of live scanning goroutines.
func (b *base) Running() int { return int(b.running.Load()) }

// Wait blocks until all scanning goroutines have exited.
func (b *base) Wait() { b.wg.Wait() }

func (b *base) settleDelay() {
	if b.settle > 0 {
		b.sleep(b.settle)
	}
}

// spawn runs scan on its own goroutine. scan only returns on failure.
func (b *base) spawn(unit string, scan func(log *slog.Logger) error) {
	b.wg.Add(1)
	b.running.Add(1)
	go func() {
		defer b.wg.Done()
		log := b.log.With("unit", unit)
		log.Info("scan task started")
		if b.hooks.TaskStarted != nil {
			b.hooks.TaskStarted(unit)
		}

		err := scan(log)

		b.running.Add(-1)
		log.Error("scan task stopped", "err", err)
		if b.hooks.TaskExited != nil {
			b.hooks.TaskExited(&TaskError{Unit: unit, Err: err})
		}
	}()
}

// edges tracks the pressed state of the keys one goroutine scans and
// emits an event whenever a reading crosses the key's threshold.
type edges struct {
	pressed []bool
	global  uint16 // global index of local key 0
	reg     *Registry
}

func newEdges(keys int, global uint16, reg *Registry) *edges {
	return &edges{pressed: make([]bool, keys), global: global, reg: reg}
}

// update compares a reading of local key i with its threshold.
// A reading equal to the threshold counts as pressed.
func (e *edges) update(i int, value core.ADCValue, threshold uint16) {
	v := uint16(value)
	switch {
	case v >= threshold && !e.pressed[i]:
		e.pressed[i] = true
		e.reg.Press(e.global + uint16(i))
	case v < threshold && e.pressed[i]:
		e.pressed[i] = false
		e.reg.Release(e.global + uint16(i))
	}
}
