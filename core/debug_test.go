package core

import (
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestDebugLoggerWritesThroughDebugWriter(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	SetDebugWriter(func(s string) {
		mu.Lock()
		lines = append(lines, s)
		mu.Unlock()
	})
	defer SetDebugWriter(func(string) {})

	// No async worker: messages are written synchronously.
	debugChan = nil
	log := NewDebugLogger(slog.LevelInfo)
	log.Debug("hidden")
	log.Info("key pressed", "index", 3)

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), lines)
	}
	if strings.HasSuffix(lines[0], "\n") {
		t.Error("trailing newline should be stripped")
	}
	if !strings.Contains(lines[0], "key pressed") || !strings.Contains(lines[0], "index=3") {
		t.Errorf("unexpected line %q", lines[0])
	}
}

func TestDebugAsyncDropsWhenFull(t *testing.T) {
	// A queue nobody drains.
	debugChan = make(chan string, debugQueueSize)
	defer func() { debugChan = nil }()

	before := DebugDropped()
	for i := 0; i < debugQueueSize+5; i++ {
		DebugAsync("x")
	}
	if got := DebugDropped() - before; got != 5 {
		t.Errorf("dropped %d messages, want 5", got)
	}
}

func TestLoggerDefault(t *testing.T) {
	if Logger() == nil {
		t.Fatal("Logger() must never be nil")
	}
	l := slog.New(slog.NewTextHandler(DebugOutput(), nil))
	SetLogger(l)
	defer SetLogger(nil)
	if Logger() != l {
		t.Error("SetLogger not applied")
	}
}
