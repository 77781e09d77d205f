// Package kscan turns analog key sensor readings into press and release
// events.
//
// A scan backend owns the thresholds of a group of keys and one scanning
// goroutine per physical scan resource. Three hardware shapes exist:
//
//   - Channels: one ADC channel per key, one goroutine per channel.
//   - Enables: one shared ADC channel, one GPIO enable line per key,
//     a single goroutine cycling through the lines.
//   - Muxes: one ADC channel plus one analog multiplexer per leg,
//     one goroutine per leg cycling through the mux channels.
//
// Every edge is broadcast through a Registry with a global key index:
// the backend's index offset plus the key's position inside the backend.
// Scanning goroutines run until their sensor or selector fails and are
// never restarted.
package kscan

import (
	"log/slog"
	"time"

	"ykb/core"
)

// Error kinds, shared with the HAL and mux packages.
var (
	ErrInvalidArgument       = core.ErrInvalidArgument
	ErrDeviceNotReady        = core.ErrDeviceNotReady
	ErrConfigurationMismatch = core.ErrConfigurationMismatch
	ErrSensorRead            = core.ErrSensorRead
	ErrSelector              = core.ErrSelector
)

// DefaultSettle is the settle interval layouts get when they name none.
// A backend configured with zero settle does not wait at all.
const DefaultSettle = 100 * time.Microsecond

// Scanner is the threshold configuration surface shared by all backends.
type Scanner interface {
	// SetThresholds replaces every threshold. values must hold exactly
	// KeyAmount() entries in [MinThreshold, MaxThreshold].
	SetThresholds(values []uint16) error

	// GetThresholds copies the live thresholds into out, which must hold
	// at least KeyAmount() entries.
	GetThresholds(out []uint16) error

	// SetDefaultThresholds restores the construction-time thresholds.
	SetDefaultThresholds()

	// KeyAmount returns the number of keys reported by the backend.
	KeyAmount() uint16

	// IdxOffset returns the value added to local key indexes.
	IdxOffset() uint16
}

// Kind identifies the hardware shape of a backend.
type Kind uint8

const (
	KindChannels Kind = iota
	KindEnables
	KindMuxes
)

func (k Kind) String() string {
	switch k {
	case KindChannels:
		return "channels"
	case KindEnables:
		return "enables"
	case KindMuxes:
		return "muxes"
	default:
		return "unknown"
	}
}

// Backend is a Scanner that owns scanning goroutines.
type Backend interface {
	Scanner

	Name() string
	Kind() Kind

	// Start launches the scanning goroutines. Calling it again does nothing.
	Start()

	// Running returns the number of scanning goroutines still alive.
	Running() int

	// Wait blocks until every scanning goroutine has terminated.
	Wait()
}

// Hooks observe the life cycle of scanning goroutines.
// They are called on the scanning goroutine itself.
type Hooks struct {
	TaskStarted func(unit string)
	TaskExited  func(err *TaskError)
}

// TaskError explains why a scanning goroutine stopped.
type TaskError struct {
	Unit string
	Err  error
}

func (e *TaskError) Error() string {
	return "kscan " + e.Unit + ": " + e.Err.Error()
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Option customizes a backend.
type Option func(*base)

// WithName sets the name used in logs and scan unit identifiers.
func WithName(name string) Option {
	return func(b *base) { b.name = name }
}

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.log = l }
}

// WithHooks installs life cycle hooks.
func WithHooks(h Hooks) Option {
	return func(b *base) { b.hooks = h }
}

// WithSleep replaces time.Sleep for settle delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(b *base) { b.sleep = fn }
}
