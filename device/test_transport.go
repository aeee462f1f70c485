package device

import (
	"context"
	"io"
	"sync"
	"time"
)

// RecordedWrite is one Write seen by a TestTransport.
type RecordedWrite struct {
	Data []byte
	At   time.Time
}

// TestTransport is a test helper that behaves like a serial port with a read
// timeout: Read waits for queued data and returns (0, nil) when none arrives
// in time. Writes are recorded with their timestamps so tests can check both
// content and pacing.
type TestTransport struct {
	mu          sync.Mutex
	readChan    chan []byte
	readTimeout time.Duration
	closed      bool
	writes      []RecordedWrite
	writeErr    error
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan:    make(chan []byte, 10),
		readTimeout: 10 * time.Millisecond,
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.writes = append(t.writes, RecordedWrite{
		Data: append([]byte(nil), p...),
		At:   time.Now(),
	})
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	select {
	case data, ok := <-t.readChan:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, data), nil
	case <-time.After(t.readTimeout):
		return 0, nil
	}
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates output from the device.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// FailWrites makes every following Write return err. Nil restores normal
// behaviour.
func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Writes returns a copy of everything written so far.
func (t *TestTransport) Writes() []RecordedWrite {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordedWrite(nil), t.writes...)
}

// Closed reports whether Close has been called.
func (t *TestTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// TestDialer hands out the same TestTransport on every Dial.
type TestDialer struct {
	Transport *TestTransport
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Transport, nil
}
