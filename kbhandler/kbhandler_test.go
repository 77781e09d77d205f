package kbhandler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ykb/kscan"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) sink(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) get() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestHandlerDeliversInOrder(t *testing.T) {
	c := &collector{}
	h := New(4, nil, c.sink)
	reg := kscan.NewRegistry(h.Listener())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	reg.Press(3)
	reg.Release(3)
	reg.Press(12)

	want := []Event{{Press, 3}, {Release, 3}, {Press, 12}}
	require.Eventually(t, func() bool { return len(c.get()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, c.get())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestHandlerDropsWhenFull(t *testing.T) {
	h := New(2, nil)
	l := h.Listener()

	// Nothing consumes, so the third and fourth events are dropped.
	l.OnPress(1)
	l.OnPress(2)
	l.OnRelease(1)
	l.OnRelease(2)

	assert.Equal(t, 2, h.Pending())
	assert.Equal(t, uint32(2), h.Dropped())

	c := &collector{}
	h.AddSink(c.sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	require.Eventually(t, func() bool { return len(c.get()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []Event{{Press, 1}, {Press, 2}}, c.get())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pressed", Press.String())
	assert.Equal(t, "released", Release.String())
}

func TestDefaultQueueSize(t *testing.T) {
	h := New(0, nil)
	assert.Equal(t, DefaultQueueSize, cap(h.queue))
}
