package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// StateChange is published every time the Session connects, loses its
// connection or fails a connect attempt.
type StateChange struct {
	State State
	// Port is the port name of the current or last handle, when known.
	Port string
	// Err is the cause of a disconnect or of a failed connect attempt.
	Err error
}

// Session owns the connection to the device. It is safe for concurrent use:
// the poll loop reads while the shell writes, and a reconnect swaps the
// handle underneath both.
//
// A failed read or write drops the handle and immediately tries to
// reconnect once. If that fails too, the next Read or Write connects before
// doing any I/O. There is no backoff: the poll loop cadence limits the rate
// of attempts.
type Session struct {
	dialer        Dialer
	logger        *slog.Logger
	pacing        Pacing
	readBuf       []byte
	pollInterval  time.Duration
	retryInterval time.Duration
	messageBuffer int

	// mu guards the fields below. I/O happens outside of it so a read
	// blocked on the port timeout never holds up a write.
	mu        sync.RWMutex
	transport Transport
	state     State
	port      string
	closed    bool

	readMu     sync.Mutex
	writeMu    sync.Mutex
	transferMu sync.Mutex

	states chan StateChange
}

// NewSession creates a disconnected Session. Call Connect, or let the first
// Read or Write connect lazily.
func NewSession(config Config) (*Session, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	return &Session{
		dialer:        config.dialer,
		logger:        config.logger,
		pacing:        config.pacing,
		readBuf:       make([]byte, config.readSize),
		pollInterval:  config.pollInterval,
		retryInterval: config.retryInterval,
		messageBuffer: config.messageBuffer,
		states:        make(chan StateChange, config.stateBuffer),
	}, nil
}

// Connect dials the device. It is a no-op on a connected Session. A failed
// attempt leaves the Session disconnected and returns an error wrapping
// ErrConnectFailed and the dial error.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.transport != nil {
		return nil
	}

	t, err := s.dialer.Dial(ctx)
	if err == nil && t == nil {
		err = errors.New("dialer returned no transport")
	}
	if err != nil {
		s.logger.Debug("Connect attempt failed", "error", err)
		s.publish(StateChange{State: Disconnected, Port: s.port, Err: err})
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	s.transport = t
	s.state = Connected
	if named, ok := t.(interface{ PortName() string }); ok {
		s.port = named.PortName()
	}
	s.logger.Info("Connected to device", "port", s.port)
	s.publish(StateChange{State: Connected, Port: s.port})
	return nil
}

// Write sends p to the device. On failure the write is dropped, the Session
// goes through one reconnect attempt and an error wrapping ErrIOFailure is
// returned.
func (s *Session) Write(ctx context.Context, p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.acquire(ctx)
	if err != nil {
		return err
	}

	n, err := t.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return s.fail(ctx, t, "write", err)
	}
	return nil
}

// Read returns whatever the device sent within one read timeout, possibly
// nothing. The returned slice is owned by the caller.
func (s *Session) Read(ctx context.Context) ([]byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	t, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}

	n, err := t.Read(s.readBuf)
	if err != nil {
		return nil, s.fail(ctx, t, "read", err)
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]byte, n)
	copy(out, s.readBuf[:n])
	return out, nil
}

// Close releases the handle. A transfer in progress finishes its frame
// first. Calling it again is a no-op.
func (s *Session) Close() error {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	t := s.transport
	s.transport = nil
	if s.state == Connected {
		s.state = Disconnected
		s.publish(StateChange{State: Disconnected, Port: s.port})
	}
	if t != nil {
		return t.Close()
	}
	return nil
}

// State reports the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Port returns the name of the current or last connected port.
func (s *Session) Port() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// StateChanges returns a read-only channel of connection state changes. The
// channel is buffered; changes are dropped when nobody keeps up, State always
// has the current value.
func (s *Session) StateChanges() <-chan StateChange {
	return s.states
}

// Transfer sends the script at path to the device, framed for mode. Only one
// transfer runs at a time; a second caller blocks until the first finishes.
// The file is read completely before any byte is written.
func (s *Session) Transfer(ctx context.Context, mode Mode, path string, notify func(string)) error {
	job, err := LoadJob(mode, path)
	if err != nil {
		return err
	}

	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	s.logger.Info("Starting transfer", "mode", mode, "path", path, "lines", len(job.Lines))
	if err := job.Send(ctx, s, s.pacing, notify); err != nil {
		s.logger.Error("Transfer aborted", "mode", mode, "path", path, "error", err)
		return err
	}
	return nil
}

// acquire returns the live handle, connecting first if there is none.
func (s *Session) acquire(ctx context.Context) (Transport, error) {
	s.mu.RLock()
	t, closed := s.transport, s.closed
	s.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if t != nil {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}
	return s.transport, nil
}

// fail drops the handle t after an I/O error and attempts one reconnect. If
// another goroutine already replaced t, only the error is reported.
func (s *Session) fail(ctx context.Context, t Transport, op string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.transport == t {
		s.transport = nil
		s.state = Disconnected
		if err := t.Close(); err != nil {
			s.logger.Debug("Close after failure", "error", err)
		}
		s.logger.Warn("Lost connection to device", "op", op, "port", s.port, "error", cause)
		s.publish(StateChange{State: Disconnected, Port: s.port, Err: cause})

		if err := s.connectLocked(ctx); err != nil {
			s.logger.Debug("Immediate reconnect failed", "error", err)
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrIOFailure, op, cause)
}

func (s *Session) publish(change StateChange) {
	select {
	case s.states <- change:
	default:
		s.logger.Debug("State change dropped", "state", change.State)
	}
}
