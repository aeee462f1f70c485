package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"monome.org/druid/proto"
)

// packetSize is the USB full-speed bulk packet size of the device's CDC
// endpoint. A write that is an exact multiple of it is not terminated by a
// short packet, and some host drivers then hold it back.
const packetSize = 64

// Mode selects what the device does with a received script.
type Mode int

const (
	// ModeUpload persists the script on the device.
	ModeUpload Mode = iota
	// ModeExecute runs the script once without persisting it.
	ModeExecute
)

func (m Mode) String() string {
	switch m {
	case ModeUpload:
		return "upload"
	case ModeExecute:
		return "execute"
	default:
		return "unknown"
	}
}

func (m Mode) verb() string {
	if m == ModeUpload {
		return "uploading"
	}
	return "running"
}

// Pacing holds the delays of the receive protocol. The device's serial
// receiver cannot be fed faster than this.
type Pacing struct {
	// Allocate is the wait after ^^s while the device allocates its buffer.
	Allocate time.Duration
	// Line is the wait after each script line.
	Line time.Duration
	// CommitSettle is the wait before ^^w.
	CommitSettle time.Duration
	// ExecuteSettle is the wait before ^^e.
	ExecuteSettle time.Duration
	// PadPacketBoundary appends a newline to lines whose length is a
	// multiple of the USB packet size.
	PadPacketBoundary bool
}

// DefaultPacing returns the delays the device firmware expects.
func DefaultPacing() Pacing {
	return Pacing{
		Allocate:          200 * time.Millisecond,
		Line:              2 * time.Millisecond,
		CommitSettle:      100 * time.Millisecond,
		ExecuteSettle:     10 * time.Millisecond,
		PadPacketBoundary: true,
	}
}

// Writer is the part of the Session a Job needs.
type Writer interface {
	Write(ctx context.Context, p []byte) error
}

// Job is one script transfer.
type Job struct {
	Mode  Mode
	Path  string
	Lines []string
}

// LoadJob reads the script at path. Lines keep their terminators. Any
// failure wraps ErrFile.
func LoadJob(mode Mode, path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFile, err)
	}
	defer f.Close()

	job := &Job{Mode: mode, Path: path}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			job.Lines = append(job.Lines, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrFile, path, err)
		}
	}
	return job, nil
}

// Frame returns the exact writes Send issues, in order, without the delays.
func (j *Job) Frame(pacing Pacing) [][]byte {
	frame := make([][]byte, 0, len(j.Lines)+2)
	frame = append(frame, []byte(proto.CmdStartReceive))
	for _, line := range j.Lines {
		if pacing.PadPacketBoundary && len(line)%packetSize == 0 {
			line += "\n"
		}
		frame = append(frame, []byte(line))
	}
	if j.Mode == ModeUpload {
		frame = append(frame, []byte(proto.CmdWrite))
	} else {
		frame = append(frame, []byte(proto.CmdExecute))
	}
	return frame
}

// Send writes the framed script to w, honouring the pacing delays.
//
// ctx is only checked before the frame starts. Once ^^s is out, the frame
// runs to completion or to the first failed write: a start marker without a
// matching ^^w or ^^e leaves the device waiting for more script. A failed
// write aborts the transfer and nothing is retried.
func (j *Job) Send(ctx context.Context, w Writer, pacing Pacing, notify func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if notify != nil {
		notify(fmt.Sprintf("%s %s", j.Mode.verb(), j.Path))
	}

	frameCtx := context.WithoutCancel(ctx)
	frame := j.Frame(pacing)
	last := len(frame) - 1

	for i, data := range frame {
		if i == last {
			time.Sleep(j.settle(pacing))
		}

		if err := w.Write(frameCtx, data); err != nil {
			return fmt.Errorf("%s %s: frame write %d of %d: %w", j.Mode.verb(), j.Path, i+1, len(frame), err)
		}

		if i == 0 {
			time.Sleep(pacing.Allocate)
		} else if i < last {
			time.Sleep(pacing.Line)
		}
	}
	return nil
}

func (j *Job) settle(pacing Pacing) time.Duration {
	if j.Mode == ModeUpload {
		return pacing.CommitSettle
	}
	return pacing.ExecuteSettle
}
