package proto

import (
	"errors"
	"strings"
	"unicode"
)

// ErrMalformedCall is returned by ParseCall for segments that do not have the
// name(channel,value) shape.
var ErrMalformedCall = errors.New("malformed call")

// Call is a parsed name(channel,value) segment.
type Call struct {
	Name    string
	Channel string
	Value   string
}

// SplitChunk splits a raw read from the device into lines. The pieces are
// not trimmed; an empty trailing piece classifies to nothing.
func SplitChunk(chunk string) []string {
	return strings.Split(chunk, LineEnd)
}

// Classify turns one line of device output into messages.
//
// Text without the marker is a single log line. Text with the marker is split
// on it and every non-empty segment is either a capture (stream/change calls)
// or echoed back as a marker-prefixed log line, so unknown control messages
// stay visible.
func Classify(text string) []Message {
	if !strings.Contains(text, Marker) {
		if text == "" {
			return nil
		}
		return []Message{Log(text)}
	}

	var out []Message
	for _, segment := range strings.Split(text, Marker) {
		if segment == "" {
			continue
		}
		out = append(out, classifySegment(segment))
	}
	return out
}

func classifySegment(segment string) Message {
	call, err := ParseCall(segment)
	if err == nil && (call.Name == CallStream || call.Name == CallChange) {
		return Capture(CaptureChannel(call.Channel), call.Value)
	}
	return Log(Marker + segment + "\n")
}

// ParseCall parses a segment of the form name(channel,value). Trailing
// whitespace and closing parentheses are ignored. A segment without an
// opening parenthesis or without a comma separating channel and value is
// malformed.
func ParseCall(segment string) (Call, error) {
	trimmed := strings.TrimRightFunc(segment, unicode.IsSpace)

	name, args, ok := strings.Cut(trimmed, "(")
	if !ok {
		return Call{Name: name}, ErrMalformedCall
	}

	args = strings.TrimRight(args, ")")
	channel, value, ok := strings.Cut(args, ",")
	if !ok {
		return Call{Name: name, Channel: channel}, ErrMalformedCall
	}

	return Call{Name: name, Channel: channel, Value: value}, nil
}

// CaptureChannel maps the channel field of a telemetry call to a capture
// channel. Anything other than "2" lands on channel 1.
func CaptureChannel(field string) int {
	if field == "2" {
		return 2
	}
	return 1
}
