// Package kbhandler queues key edges coming from the scan goroutines and
// hands them to sinks on a consumer goroutine.
package kbhandler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"ykb/core"
	"ykb/kscan"
)

// DefaultQueueSize is the queue length used when New is given zero.
const DefaultQueueSize = 8

// Kind tells presses from releases.
type Kind uint8

const (
	Press Kind = iota
	Release
)

func (k Kind) String() string {
	if k == Press {
		return "pressed"
	}
	return "released"
}

// Event is one key edge.
type Event struct {
	Kind  Kind
	Index uint16
}

// Sink consumes events on the handler goroutine.
type Sink func(Event)

// Handler is a kscan.Listener backed by a bounded queue.
// Enqueueing never blocks; events that do not fit are dropped and counted.
type Handler struct {
	queue   chan Event
	log     *slog.Logger
	dropped atomic.Uint32

	mu    sync.RWMutex
	sinks []Sink
}

// New returns a handler with room for size pending events.
func New(size int, log *slog.Logger, sinks ...Sink) *Handler {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = core.Logger()
	}
	return &Handler{
		queue: make(chan Event, size),
		log:   log.With("component", "kb_handler"),
		sinks: sinks,
	}
}

// AddSink registers another consumer. Safe while Run is active.
func (h *Handler) AddSink(s Sink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// Listener returns the callbacks to register with the scan backends.
func (h *Handler) Listener() kscan.Listener {
	return kscan.Listener{
		OnPress:   func(i uint16) { h.put(Event{Kind: Press, Index: i}) },
		OnRelease: func(i uint16) { h.put(Event{Kind: Release, Index: i}) },
	}
}

func (h *Handler) put(ev Event) {
	select {
	case h.queue <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns how many events were lost to a full queue.
func (h *Handler) Dropped() uint32 {
	return h.dropped.Load()
}

// Pending returns the number of queued events.
func (h *Handler) Pending() int {
	return len(h.queue)
}

// Run delivers events until ctx is done.
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-h.queue:
			h.deliver(ev)
		}
	}
}

func (h *Handler) deliver(ev Event) {
	h.log.Info("key "+ev.Kind.String(), "idx", ev.Index)

	h.mu.RLock()
	sinks := h.sinks
	h.mu.RUnlock()
	for _, s := range sinks {
		s(ev)
	}
}
