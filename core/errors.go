package core

import "errors"

// Error kinds shared by the scan engine and its hardware capabilities.
// Drivers wrap them with context; callers match with errors.Is.
var (
	// ErrInvalidArgument reports a bad value passed to an API call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeviceNotReady reports a sensor, GPIO or mux that failed its
	// readiness check or setup.
	ErrDeviceNotReady = errors.New("device not ready")

	// ErrConfigurationMismatch reports inconsistent construction parameters,
	// such as key counts that do not add up.
	ErrConfigurationMismatch = errors.New("configuration mismatch")

	// ErrSensorRead reports a failed analog sample.
	ErrSensorRead = errors.New("sensor read failed")

	// ErrSelector reports a failed GPIO or mux selection change.
	ErrSelector = errors.New("selector failed")
)
