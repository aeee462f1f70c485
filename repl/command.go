package repl

import (
	"strings"
	"unicode"
)

// CommandKind is one of the shell's commands.
type CommandKind int

const (
	CommandRaw CommandKind = iota
	CommandQuit
	CommandPrintScript
	CommandHelp
	CommandRun
	CommandUpload
)

func (k CommandKind) String() string {
	switch k {
	case CommandRaw:
		return "raw"
	case CommandQuit:
		return "quit"
	case CommandPrintScript:
		return "print"
	case CommandHelp:
		return "help"
	case CommandRun:
		return "run"
	case CommandUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Command is a parsed input line.
type Command struct {
	Kind CommandKind
	// Arg is everything after the first token, trimmed.
	Arg string
	// Line is the input exactly as submitted.
	Line string
}

// Parse maps an input line to a command. The first whitespace-delimited token
// selects the command and the rest of the line is its argument. Lines that
// are not shell commands are Raw and go to the device untouched.
func Parse(line string) Command {
	head, arg := splitHead(line)

	kind := CommandRaw
	switch head {
	case "q":
		kind = CommandQuit
	case "p":
		kind = CommandPrintScript
	case "h":
		kind = CommandHelp
	case "r":
		kind = CommandRun
	case "u":
		kind = CommandUpload
	}

	return Command{Kind: kind, Arg: arg, Line: line}
}

func splitHead(line string) (head, rest string) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	i := strings.IndexFunc(trimmed, unicode.IsSpace)
	if i < 0 {
		return trimmed, ""
	}
	return trimmed[:i], strings.TrimSpace(trimmed[i:])
}
