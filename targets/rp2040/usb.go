//go:build rp2040

package main

import (
	"machine"
	"time"
)

// usbLink exposes the USB CDC port as an io.ReadWriter for the diagnostic
// protocol. Read never blocks; it returns 0 bytes when nothing is buffered.
type usbLink struct {
	writeFailures uint32
}

// InitUSB configures machine.Serial, which is USB CDC on the RP2040.
func InitUSB() *usbLink {
	machine.Serial.Configure(machine.UARTConfig{})
	return &usbLink{}
}

func (u *usbLink) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Write retries partial writes for a while before giving up, so a host
// that stopped reading cannot stall the caller forever.
func (u *usbLink) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := machine.Serial.Write(p[written:])
		if err != nil {
			u.writeFailures++
			return written, err
		}
		if n == 0 {
			u.writeFailures++
			if u.writeFailures > 10 {
				u.writeFailures = 0
				return written, errUSBStalled
			}
			time.Sleep(time.Millisecond)
			continue
		}
		written += n
	}
	u.writeFailures = 0
	return written, nil
}
