package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// historySize bounds the in-memory history. History is never written to disk.
const historySize = 500

// LineReader supplies input lines to the shell.
type LineReader interface {
	// GetLine returns the next line without its terminator, or io.EOF when
	// input is exhausted.
	GetLine(prompt string) (string, error)
	Close()
}

// LineEditor reads lines with readline when in is a terminal and falls back
// to a plain scanner for piped input.
type LineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
	out         io.Writer
}

// NewLineEditor returns a LineEditor reading from in. Prompts for piped
// input are written to out.
func NewLineEditor(in *os.File, out io.Writer) *LineEditor {
	if !term.IsTerminal(int(in.Fd())) {
		return &LineEditor{scanner: bufio.NewScanner(in), out: out}
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline unavailable (%v), using basic input\n", err)
		return &LineEditor{scanner: bufio.NewScanner(in), out: out}
	}

	return &LineEditor{interactive: true, rl: rl, out: out}
}

// GetLine implements LineReader. Ctrl-C and Ctrl-D both end input.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if !le.interactive {
		fmt.Fprint(le.out, prompt)
		if !le.scanner.Scan() {
			if err := le.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return le.scanner.Text(), nil
	}

	le.rl.SetPrompt(prompt)
	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		le.rl.SaveToHistory(line)
	}
	return line, nil
}

// Close releases the terminal. Safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline is in use. The shell leaves out its
// banner when it is not.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
