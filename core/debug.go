package core

import (
	"io"
	"log/slog"
	"sync/atomic"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

const debugQueueSize = 32

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// Async debug output channel
	debugChan chan string

	// Messages dropped because the async queue was full
	debugDropped atomic.Uint32

	logger atomic.Pointer[slog.Logger]
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, debugQueueSize)
	go debugOutputWorker(debugChan)
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker(ch <-chan string) {
	for msg := range ch {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugAsync queues a debug message for async output (non-blocking).
// Falls back to a direct write when the async worker was never started.
func DebugAsync(msg string) {
	if debugChan == nil {
		debugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
		// Channel full, drop message (non-blocking)
		debugDropped.Add(1)
	}
}

// DebugDropped returns how many async debug messages were dropped.
func DebugDropped() uint32 {
	return debugDropped.Load()
}

// debugSink adapts DebugAsync to io.Writer so slog handlers can use it.
type debugSink struct{}

func (debugSink) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	DebugAsync(string(p))
	return n, nil
}

// DebugOutput returns an io.Writer that feeds the debug writer without
// blocking the caller.
func DebugOutput() io.Writer {
	return debugSink{}
}

// NewDebugLogger builds a text logger on top of the debug writer.
func NewDebugLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(DebugOutput(), &slog.HandlerOptions{Level: level}))
}

// SetLogger replaces the process logger.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

// Logger returns the process logger. Until SetLogger is called it discards
// everything.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return discardLogger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
