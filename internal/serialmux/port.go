package serialmux

import "io"

// SerialPorter is the part of a serial port SerialMux needs. go.bug.st/serial
// ports satisfy it, as do the in-memory ports used in tests and replay.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
