package device_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"monome.org/druid/device"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sketch.lua")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// decodeFrame plays the device's side of the receive protocol: it checks the
// start and end markers and returns the script lines in between.
func decodeFrame(t *testing.T, writes []device.RecordedWrite, end string) []string {
	t.Helper()
	if len(writes) < 2 {
		t.Fatalf("frame too short: %d writes", len(writes))
	}
	if got := string(writes[0].Data); got != "^^s" {
		t.Fatalf("frame must start with ^^s, got %q", got)
	}
	if got := string(writes[len(writes)-1].Data); got != end {
		t.Fatalf("frame must end with %s, got %q", end, got)
	}

	var lines []string
	for _, w := range writes[1 : len(writes)-1] {
		lines = append(lines, string(w.Data))
	}
	return lines
}

func connectedSession(t *testing.T, tt *device.TestTransport, pacing device.Pacing) *device.Session {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockDialer := device.NewMockDialer(ctrl)
	mockDialer.EXPECT().Dial(gomock.Any()).Return(tt, nil)

	config, err := device.NewConfigBuilder().
		WithDialer(mockDialer).
		WithLogger(discardLogger()).
		WithPacing(pacing).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	s, err := device.NewSession(config)
	if err != nil {
		t.Fatalf("unexpected error from NewSession(): %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error from Connect(): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTransferUploadRoundTrip(t *testing.T) {
	lines := []string{
		"-- sketch\n",
		"function init()\n",
		"\tinput[1].mode('stream', 0.1)\n",
		"end",
	}
	path := writeScript(t, strings.Join(lines, ""))

	tt := device.NewTestTransport()
	s := connectedSession(t, tt, device.DefaultPacing())

	var notes []string
	err := s.Transfer(context.Background(), device.ModeUpload, path, func(msg string) {
		notes = append(notes, msg)
	})
	if err != nil {
		t.Fatalf("unexpected error from Transfer(): %v", err)
	}

	writes := tt.Writes()
	got := decodeFrame(t, writes, "^^w")
	if len(got) != len(lines) {
		t.Fatalf("expected %d lines, got %d: %q", len(lines), len(got), got)
	}
	for i := range lines {
		if got[i] != lines[i] {
			t.Errorf("line %d: expected %q, got %q", i, lines[i], got[i])
		}
	}

	allocate := device.DefaultPacing().Allocate
	if gap := writes[1].At.Sub(writes[0].At); gap < allocate {
		t.Errorf("first line sent %v after ^^s, want at least %v", gap, allocate)
	}
	settle := device.DefaultPacing().CommitSettle
	if gap := writes[len(writes)-1].At.Sub(writes[len(writes)-2].At); gap < settle {
		t.Errorf("^^w sent %v after the last line, want at least %v", gap, settle)
	}

	if len(notes) != 1 || notes[0] != "uploading "+path {
		t.Errorf("unexpected notifications %q", notes)
	}
}

func TestTransferExecute(t *testing.T) {
	path := writeScript(t, "print('hi')\n")

	tt := device.NewTestTransport()
	s := connectedSession(t, tt, device.DefaultPacing())

	var notes []string
	if err := s.Transfer(context.Background(), device.ModeExecute, path, func(msg string) {
		notes = append(notes, msg)
	}); err != nil {
		t.Fatalf("unexpected error from Transfer(): %v", err)
	}

	got := decodeFrame(t, tt.Writes(), "^^e")
	if len(got) != 1 || got[0] != "print('hi')\n" {
		t.Errorf("unexpected lines %q", got)
	}
	if len(notes) != 1 || notes[0] != "running "+path {
		t.Errorf("unexpected notifications %q", notes)
	}
}

func TestTransferFileError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Dial expectation: a missing file must not touch the device.
	s := newSession(t, device.NewMockDialer(ctrl))

	called := false
	err := s.Transfer(context.Background(), device.ModeUpload, filepath.Join(t.TempDir(), "missing.lua"), func(string) {
		called = true
	})

	if !errors.Is(err, device.ErrFile) {
		t.Errorf("expected ErrFile, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
	if called {
		t.Error("notify must not run when the file cannot be read")
	}
}

func TestTransferWriteFailureAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeScript(t, "a\nb\nc\n")
	mockDialer := device.NewMockDialer(ctrl)
	mockTransport := device.NewMockTransport(ctrl)
	writeErr := errors.New("unplugged")

	gomock.InOrder(
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
		mockTransport.EXPECT().Write([]byte("^^s")).Return(3, nil),
		mockTransport.EXPECT().Write([]byte("a\n")).Return(0, writeErr),
		mockTransport.EXPECT().Close().Return(nil),
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, device.ErrDeviceNotFound),
	)

	config, err := device.NewConfigBuilder().
		WithDialer(mockDialer).
		WithLogger(discardLogger()).
		WithPacing(device.Pacing{Allocate: time.Millisecond}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	s, err := device.NewSession(config)
	if err != nil {
		t.Fatalf("unexpected error from NewSession(): %v", err)
	}

	err = s.Transfer(context.Background(), device.ModeUpload, path, nil)
	if !errors.Is(err, device.ErrIOFailure) {
		t.Errorf("expected ErrIOFailure, got %v", err)
	}
	if !errors.Is(err, writeErr) {
		t.Errorf("expected write error in chain, got %v", err)
	}
}

func TestTransferCancelledBeforeStart(t *testing.T) {
	path := writeScript(t, "x = 1\n")
	tt := device.NewTestTransport()
	s := connectedSession(t, tt, device.DefaultPacing())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Transfer(ctx, device.ModeExecute, path, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n := len(tt.Writes()); n != 0 {
		t.Errorf("expected no writes, got %d", n)
	}
}

func TestTransferCompletesFrameAfterCancel(t *testing.T) {
	path := writeScript(t, "a\nb\n")
	tt := device.NewTestTransport()
	s := connectedSession(t, tt, device.Pacing{
		Allocate:      50 * time.Millisecond,
		Line:          time.Millisecond,
		ExecuteSettle: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	if err := s.Transfer(ctx, device.ModeExecute, path, nil); err != nil {
		t.Fatalf("a started frame must run to completion, got %v", err)
	}
	got := decodeFrame(t, tt.Writes(), "^^e")
	if len(got) != 2 {
		t.Errorf("expected both lines, got %q", got)
	}
}

func TestCloseWaitsForFrame(t *testing.T) {
	path := writeScript(t, "a\nb\n")
	tt := device.NewTestTransport()
	s := connectedSession(t, tt, device.Pacing{
		Allocate:      50 * time.Millisecond,
		Line:          time.Millisecond,
		ExecuteSettle: time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- s.Transfer(context.Background(), device.ModeExecute, path, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error from Close(): %v", err)
	}

	writes := tt.Writes()
	if err := <-done; err != nil {
		t.Fatalf("transfer interrupted by Close: %v", err)
	}

	got := decodeFrame(t, writes, "^^e")
	if len(got) != 2 {
		t.Errorf("expected both lines, got %q", got)
	}
	if !tt.Closed() {
		t.Error("transport should be closed after the frame")
	}
	if err := s.Write(context.Background(), []byte("x")); !errors.Is(err, device.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestTransfersDoNotInterleave(t *testing.T) {
	first := writeScript(t, "a1\na2\na3\n")
	second := writeScript(t, "b1\nb2\nb3\n")

	tt := device.NewTestTransport()
	s := connectedSession(t, tt, device.Pacing{
		Allocate:      5 * time.Millisecond,
		Line:          2 * time.Millisecond,
		ExecuteSettle: time.Millisecond,
	})

	var wg sync.WaitGroup
	for _, path := range []string{first, second} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := s.Transfer(context.Background(), device.ModeExecute, path, nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(path)
	}
	wg.Wait()

	writes := tt.Writes()
	if len(writes) != 10 {
		t.Fatalf("expected two frames of 5 writes, got %d", len(writes))
	}
	for _, frame := range [][]device.RecordedWrite{writes[:5], writes[5:]} {
		lines := decodeFrame(t, frame, "^^e")
		prefix := lines[0][:1]
		for _, line := range lines {
			if !strings.HasPrefix(line, prefix) {
				t.Errorf("frames interleaved: %q", lines)
			}
		}
	}
}

func TestJobFrame(t *testing.T) {
	line64 := strings.Repeat("x", 63) + "\n"
	job := &device.Job{Mode: device.ModeUpload, Lines: []string{"a\n", line64, "b"}}

	t.Run("Pads lines on the packet boundary", func(t *testing.T) {
		frame := job.Frame(device.DefaultPacing())
		expected := []string{"^^s", "a\n", line64 + "\n", "b", "^^w"}
		if len(frame) != len(expected) {
			t.Fatalf("expected %d writes, got %d", len(expected), len(frame))
		}
		for i := range expected {
			if string(frame[i]) != expected[i] {
				t.Errorf("write %d: expected %q, got %q", i, expected[i], frame[i])
			}
		}
	})

	t.Run("Padding can be disabled", func(t *testing.T) {
		frame := job.Frame(device.Pacing{})
		if string(frame[2]) != line64 {
			t.Errorf("expected unpadded line, got %q", frame[2])
		}
	})
}

func TestLoadJob(t *testing.T) {
	path := writeScript(t, "one\r\ntwo\n\nthree")
	job, err := device.LoadJob(device.ModeExecute, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"one\r\n", "two\n", "\n", "three"}
	if len(job.Lines) != len(expected) {
		t.Fatalf("expected %d lines, got %q", len(expected), job.Lines)
	}
	for i := range expected {
		if job.Lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], job.Lines[i])
		}
	}

	empty := writeScript(t, "")
	job, err = device.LoadJob(device.ModeUpload, empty)
	if err != nil {
		t.Fatalf("unexpected error for empty file: %v", err)
	}
	if len(job.Lines) != 0 {
		t.Errorf("expected no lines, got %q", job.Lines)
	}

	if _, err := device.LoadJob(device.ModeUpload, t.TempDir()); !errors.Is(err, device.ErrFile) {
		t.Errorf("expected ErrFile for a directory, got %v", err)
	}
}
