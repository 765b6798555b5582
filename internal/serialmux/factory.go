package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// NewRealSerialMux creates a SerialMux instance backed by a real serial port
// at the given path using the provided serial options. A missing path is a
// configuration error: the link stays closed and ErrNoPort is returned.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	if path == "" {
		return nil, ErrNoPort
	}

	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port), nil
}
