package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"monome.org/druid/device"
	"monome.org/druid/proto"
	"monome.org/druid/repl"
	"monome.org/druid/tui"
)

const (
	// downloadIdleReads is how many empty reads end a download once the
	// device has started answering.
	downloadIdleReads = 3
	// downloadMaxIdleReads bounds a download from a device that never
	// answers. Reads that return data do not count.
	downloadMaxIdleReads = 20
	// uploadSettle gives the device time to load a new script before it is
	// printed back.
	uploadSettle = 500 * time.Millisecond
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("druid", pflag.ContinueOnError)
	flagSet.String("port", "", "serial port of the device (default: find it by USB signature)")
	flagSet.String("signature", "0483:5740", "USB vendor:product id used to find the device")
	flagSet.String("log-file", "druid.log", "session log file, truncated on start")
	flagSet.String("log-level", "info", "log level (debug, info, warn, error)")
	flagSet.String("config", "", "YAML config file")
	flagSet.Bool("plain", false, "use the line-mode shell instead of the full-screen UI")
	flagSet.Bool("pad-packets", true, "append a newline to script lines that fill whole USB packets")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	configPath, _ := flagSet.GetString("config")
	required := configPath != ""
	if configPath == "" {
		configPath = os.Getenv("DRUID_CONFIG")
		required = configPath != ""
	}

	config, err := LoadConfig(WithDefaults(), WithFile(configPath, required), WithEnv(), WithFlags(flagSet))
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := openLog(config)
	if err != nil {
		return err
	}
	defer closeLog()

	session, err := newSession(config, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, rest := "repl", flagSet.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	logger.Info("Starting druid", "command", command, "port", config.Port)

	switch command {
	case "download":
		if len(rest) > 0 {
			return fmt.Errorf("download: unexpected argument %q", rest[0])
		}
		return runDownload(ctx, session, os.Stdout)

	case "upload":
		if len(rest) != 1 {
			return errors.New("usage: druid upload <file>")
		}
		return runUpload(ctx, session, rest[0], os.Stdout)

	case "repl":
		if len(rest) > 1 {
			return errors.New("usage: druid repl [file]")
		}
		script := ""
		if len(rest) == 1 {
			script = rest[0]
			if _, err := os.Stat(script); err != nil {
				return fmt.Errorf("repl: %w", err)
			}
		}
		return runRepl(ctx, session, config, logger, script)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func openLog(config *Config) (*slog.Logger, func(), error) {
	level, err := parseLevel(config.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	if config.LogFile == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}

	file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { file.Close() }, nil
}

func newSession(config *Config, logger *slog.Logger) (*device.Session, error) {
	signature, err := device.ParseSignature(config.Signature)
	if err != nil {
		return nil, err
	}

	pacing := device.DefaultPacing()
	pacing.PadPacketBoundary = config.PadPacketBoundary

	deviceConfig, err := device.NewConfigBuilder().
		WithDialer(device.SerialDialer{
			PortName: config.Port,
			Locator: device.Locator{
				Signature: signature,
				Logger:    logger.With("component", "locator"),
			},
		}).
		WithLogger(logger).
		WithPacing(pacing).
		Build()
	if err != nil {
		return nil, fmt.Errorf("device config: %w", err)
	}

	return device.NewSession(deviceConfig)
}

// runDownload prints the script currently loaded on the device.
func runDownload(ctx context.Context, session *device.Session, out io.Writer) error {
	if err := session.Connect(ctx); err != nil {
		return err
	}
	return printScript(ctx, session, out)
}

// runUpload stores a script on the device, shows what the device said about
// it and prints the stored script back.
func runUpload(ctx context.Context, session *device.Session, path string, out io.Writer) error {
	if _, err := device.LoadJob(device.ModeUpload, path); err != nil {
		return err
	}
	if err := session.Connect(ctx); err != nil {
		return err
	}

	notify := func(text string) { fmt.Fprintln(out, text) }
	if err := session.Transfer(ctx, device.ModeUpload, path, notify); err != nil {
		return err
	}

	response, err := drain(ctx, session)
	if err != nil {
		return err
	}
	fmt.Fprint(out, response)
	fmt.Fprintln(out, "File uploaded")

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(uploadSettle):
	}
	return printScript(ctx, session, out)
}

func printScript(ctx context.Context, session *device.Session, out io.Writer) error {
	if err := session.Write(ctx, []byte(proto.CmdPrint)); err != nil {
		return err
	}
	script, err := drain(ctx, session)
	if err != nil {
		return err
	}
	fmt.Fprint(out, script)
	return nil
}

// drain reads until the device goes quiet and returns its output with line
// endings normalised.
func drain(ctx context.Context, session *device.Session) (string, error) {
	var b strings.Builder
	idle := 0
	for idle < downloadMaxIdleReads && ctx.Err() == nil {
		data, err := session.Read(ctx)
		if err != nil {
			return b.String(), err
		}
		if len(data) == 0 {
			idle++
			if b.Len() > 0 && idle >= downloadIdleReads {
				break
			}
			continue
		}
		idle = 0
		b.Write(data)
	}

	lines := proto.SplitChunk(b.String())
	text := strings.Join(lines, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text, nil
}

// runRepl runs the interactive shell with the poller feeding it. A script
// given on the command line is run once the shell is up.
func runRepl(ctx context.Context, session *device.Session, config *Config, logger *slog.Logger, script string) error {
	if err := session.Connect(ctx); err != nil {
		logger.Warn("Device not available yet", "error", err)
	}

	poller := device.NewPoller(session)
	group, ctx := errgroup.WithContext(ctx)
	ctx, quit := context.WithCancel(ctx)

	group.Go(func() error {
		return poller.Run(ctx)
	})

	if config.Plain {
		editor := repl.NewLineEditor(os.Stdin, os.Stdout)
		defer editor.Close()

		var shell *repl.Shell
		dispatcher := repl.NewDispatcher(session,
			repl.WithLogger(logger.With("component", "dispatcher")),
			repl.WithNotify(func(text string) { shell.Print(repl.FormatLog(text)) }),
		)
		shell = repl.NewShell(dispatcher, editor, os.Stdout, logger)

		group.Go(func() error {
			defer quit()
			if script != "" {
				if res := dispatcher.Dispatch(ctx, "r "+script); res.Err != nil {
					shell.Print(repl.FormatResult(res))
				}
			}
			return shell.Run(ctx, poller.Messages(), session.StateChanges())
		})
		return group.Wait()
	}

	bridge := tui.NewBridge()
	dispatcher := repl.NewDispatcher(session,
		repl.WithLogger(logger.With("component", "dispatcher")),
		repl.WithNotify(bridge.Notify),
	)

	group.Go(func() error {
		return bridge.Forward(ctx, poller.Messages(), session.StateChanges())
	})
	model := tui.NewModel(ctx, dispatcher)
	if script != "" {
		model = model.WithStartupLine("r " + script)
	}
	group.Go(func() error {
		defer quit()
		return tui.Run(ctx, model, bridge)
	})
	return group.Wait()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `druid - terminal for crow.

Usage:
  druid [flags] [repl [file]]   interactive shell, running file first if given
  druid [flags] download        print the script stored on the device
  druid [flags] upload <file>   store a script on the device

Flags:
`)
	flagSet.PrintDefaults()
}
