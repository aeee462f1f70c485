package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"monome.org/druid/device"
	"monome.org/druid/proto"
)

// Prompt is shown before every input line.
const Prompt = "> "

// Shell is the line-mode front end: device output and connection notices
// are printed as they arrive while lines are read from a LineReader.
type Shell struct {
	dispatcher *Dispatcher
	editor     LineReader
	logger     *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewShell returns a Shell writing to out.
func NewShell(dispatcher *Dispatcher, editor LineReader, out io.Writer, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		dispatcher: dispatcher,
		editor:     editor,
		out:        out,
		logger:     logger.With("component", "shell"),
	}
}

// Print writes text to the shell output. Safe for concurrent use, so it can
// be handed to the dispatcher as its notify callback.
func (s *Shell) Print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, text)
}

// Run reads and dispatches lines until quit, end of input or ctx is done.
// messages and states may be nil.
func (s *Shell) Run(ctx context.Context, messages <-chan proto.Message, states <-chan device.StateChange) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watch(ctx, messages, states)
	}()
	defer wg.Wait()
	defer cancel()

	if s.interactive() {
		s.Print(Intro)
	}
	for ctx.Err() == nil {
		line, err := s.editor.GetLine(Prompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		res := s.dispatcher.Dispatch(ctx, line)
		if text := FormatResult(res); text != "" {
			s.Print(text)
		}
		if res.Outcome == OutcomeQuit {
			return nil
		}
	}
	return nil
}

// interactive reports whether a person is typing. Readers that cannot tell
// are assumed interactive.
func (s *Shell) interactive() bool {
	if editor, ok := s.editor.(interface{ IsInteractive() bool }); ok {
		return editor.IsInteractive()
	}
	return true
}

func (s *Shell) watch(ctx context.Context, messages <-chan proto.Message, states <-chan device.StateChange) {
	var notices StateNotices
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if msg.Kind == proto.KindCapture {
				s.Print(FormatCapture(msg) + "\n")
			} else {
				s.Print(FormatLog(msg.Text))
			}
		case change, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if change.Err != nil {
				s.logger.Debug("Connection state changed", "state", change.State, "error", change.Err)
			}
			if text := notices.Notice(change); text != "" {
				s.Print(text)
			}
		}
	}
}
