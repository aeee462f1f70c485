package device

import "errors"

var (
	// ErrNoDialer is returned when a Session is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the device.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrDeviceNotFound is returned when a full enumeration of the host's
	// serial ports finds no port carrying the device signature.
	//
	// It is fatal for one-shot commands. The interactive session treats it
	// like any other failed connect and keeps retrying from the poll loop.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrConnectFailed wraps every failed connection attempt. The dial error
	// is wrapped alongside it, so errors.Is(err, ErrDeviceNotFound) still
	// works.
	ErrConnectFailed = errors.New("connect failed")

	// ErrIOFailure is returned when a read or write fails on a handle that
	// was assumed to be open. The Session has already dropped the handle and
	// attempted one reconnect by the time the caller sees it.
	ErrIOFailure = errors.New("device i/o failure")

	// ErrFile is returned when a script file cannot be read. No device I/O
	// happens in that case.
	ErrFile = errors.New("script file error")

	// ErrClosed is returned by I/O on a Session after Close.
	ErrClosed = errors.New("session closed")
)
