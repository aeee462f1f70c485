package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=device

const (
	// BaudRate is fixed by the device firmware.
	BaudRate = 115200
	// ReadTimeout bounds a single read so the poll loop never blocks for long.
	ReadTimeout = 100 * time.Millisecond
)

// Transport represents an established, bidirectional byte stream to the device.
//
// A Transport is assumed to be already connected and ready for use. Typical
// implementations are serial ports or in-memory fakes used for testing. Reads
// are expected to time out and return (0, nil) when the device is silent.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to the device.
//
// Dialer abstracts how the connection is created (for example, by locating
// the device among the host's serial ports) so that the Session can call it
// again every time it needs to reconnect.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport.
	// It should respect cancellation of the provided context and returns an
	// error if the transport cannot be established.
	Dial(ctx context.Context) (Transport, error)
}

// SerialTransport is a serial port that remembers its name.
type SerialTransport struct {
	serial.Port
	name string
}

// PortName returns the name of the underlying serial port.
func (t *SerialTransport) PortName() string {
	return t.name
}

// SerialDialer opens the device over a serial port using go.bug.st/serial.
//
// When PortName is empty the port is found with the Locator on every dial,
// which lets a reconnect pick up the device under a new name after it has
// been replugged.
type SerialDialer struct {
	// PortName bypasses discovery when set (e.g. "/dev/ttyACM0").
	PortName string
	// Locator finds the device port when PortName is empty.
	Locator Locator
	// Mode overrides the serial parameters. Nil means 115200 8N1.
	Mode *serial.Mode
	// ReadTimeout overrides ReadTimeout when non-zero.
	ReadTimeout time.Duration
}

// Dial locates and opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("druid: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	portName := d.PortName
	if portName == "" {
		var err error
		if portName, err = d.Locator.Find(); err != nil {
			return nil, err
		}
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("can't open serial port %s: %w", portName, err)
	}

	timeout := d.ReadTimeout
	if timeout == 0 {
		timeout = ReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}

	return &SerialTransport{Port: port, name: portName}, nil
}
