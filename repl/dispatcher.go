package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"monome.org/druid/device"
	"monome.org/druid/proto"
)

//go:generate mockgen -destination=mock_target_test.go -package=repl_test monome.org/druid/repl Target

var (
	// ErrTerminated is returned for every line dispatched after quit.
	ErrTerminated = errors.New("shell terminated")

	// ErrUsage marks a command that was recognised but cannot run as typed.
	ErrUsage = errors.New("usage error")
)

// Target is what the dispatcher drives. *device.Session implements it.
type Target interface {
	Write(ctx context.Context, p []byte) error
	Transfer(ctx context.Context, mode device.Mode, path string, notify func(string)) error
}

// Outcome says which branch a dispatched line took.
type Outcome int

const (
	// OutcomeSent means bytes were handed to the device (raw or print).
	OutcomeSent Outcome = iota
	// OutcomeTransferred means a script transfer ran.
	OutcomeTransferred
	OutcomeHelp
	OutcomeQuit
	// OutcomeUsage means the command was not run and nothing was written.
	OutcomeUsage
	// OutcomeRejected means the shell had already quit.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeTransferred:
		return "transferred"
	case OutcomeHelp:
		return "help"
	case OutcomeQuit:
		return "quit"
	case OutcomeUsage:
		return "usage"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is the outcome of one dispatched line. Err is set when the device
// write or transfer failed; the shell reports it and carries on.
type Result struct {
	Command Command
	Outcome Outcome
	// Message is text for the output log (help, usage, failures).
	Message string
	Err     error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithNotify sets the callback that receives transfer progress lines.
func WithNotify(notify func(string)) Option {
	return func(d *Dispatcher) {
		d.notify = notify
	}
}

// WithFileCheck replaces the check that decides whether r and u arguments
// name a runnable script.
func WithFileCheck(isFile func(path string) bool) Option {
	return func(d *Dispatcher) {
		d.isFile = isFile
	}
}

// Dispatcher maps input lines to device actions. It is safe to call Dispatch
// from several goroutines; transfers are serialised by the Target.
type Dispatcher struct {
	target Target
	logger *slog.Logger
	notify func(string)
	isFile func(string) bool

	mu   sync.Mutex
	done bool
}

// NewDispatcher returns a Dispatcher driving target.
func NewDispatcher(target Target, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		target: target,
		logger: slog.Default(),
		isFile: isRegularFile,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch parses line and runs it. Every line yields exactly one Result.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) Result {
	cmd := Parse(line)

	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		return Result{Command: cmd, Outcome: OutcomeRejected, Err: ErrTerminated}
	}
	if cmd.Kind == CommandQuit {
		d.done = true
	}
	d.mu.Unlock()

	d.logger.Debug("Dispatching command", "command", cmd.Kind, "arg", cmd.Arg)

	switch cmd.Kind {
	case CommandQuit:
		return Result{Command: cmd, Outcome: OutcomeQuit, Message: "bye."}

	case CommandHelp:
		return Result{Command: cmd, Outcome: OutcomeHelp, Message: HelpText}

	case CommandPrintScript:
		return d.write(ctx, cmd, proto.CmdPrint)

	case CommandRun:
		return d.transfer(ctx, cmd, device.ModeExecute)

	case CommandUpload:
		return d.transfer(ctx, cmd, device.ModeUpload)

	default:
		return d.write(ctx, cmd, cmd.Line+proto.CommandEnd)
	}
}

// Done reports whether quit has been dispatched.
func (d *Dispatcher) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

func (d *Dispatcher) write(ctx context.Context, cmd Command, data string) Result {
	res := Result{Command: cmd, Outcome: OutcomeSent}
	if err := d.target.Write(ctx, []byte(data)); err != nil {
		d.logger.Warn("Write dropped", "command", cmd.Kind, "error", err)
		res.Err = err
	}
	return res
}

func (d *Dispatcher) transfer(ctx context.Context, cmd Command, mode device.Mode) Result {
	if cmd.Arg == "" {
		return Result{
			Command: cmd,
			Outcome: OutcomeUsage,
			Message: fmt.Sprintf("usage: %s <filename>", strings.TrimSpace(cmd.Line)),
			Err:     ErrUsage,
		}
	}
	if !d.isFile(cmd.Arg) {
		return Result{
			Command: cmd,
			Outcome: OutcomeUsage,
			Message: fmt.Sprintf("no such file: %s", cmd.Arg),
			Err:     fmt.Errorf("%w: %s: not a file", ErrUsage, cmd.Arg),
		}
	}

	res := Result{Command: cmd, Outcome: OutcomeTransferred}
	if err := d.target.Transfer(ctx, mode, cmd.Arg, d.notify); err != nil {
		d.logger.Error("Transfer failed", "mode", mode, "path", cmd.Arg, "error", err)
		res.Err = err
		res.Message = fmt.Sprintf("%s failed: %v", mode, err)
	}
	return res
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
