package kscan

import "fmt"

// errorf wraps kind with a formatted context message.
func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// wrapf wraps kind and keeps the driver error visible in the message.
func wrapf(kind, cause error, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), kind, cause)
}
