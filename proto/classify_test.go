package proto_test

import (
	"errors"
	"reflect"
	"testing"

	"monome.org/druid/proto"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []proto.Message
	}{
		{
			name:     "Empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "Plain text without marker",
			input:    "hello from crow",
			expected: []proto.Message{proto.Log("hello from crow")},
		},
		{
			name:     "Plain text with parentheses is not a call",
			input:    "stream(1,0.5)",
			expected: []proto.Message{proto.Log("stream(1,0.5)")},
		},
		{
			name:  "Stream and change captures in order",
			input: "^^stream(1,0.482)^^change(2,3)",
			expected: []proto.Message{
				proto.Capture(1, "0.482"),
				proto.Capture(2, "3"),
			},
		},
		{
			name:     "Unknown call is passed through",
			input:    "^^unknown()",
			expected: []proto.Message{proto.Log("^^unknown()\n")},
		},
		{
			name:     "Consecutive markers produce nothing",
			input:    "^^^^",
			expected: nil,
		},
		{
			name:  "Empty segments between calls are skipped",
			input: "^^stream(2,-1.5)^^^^change(1,0)",
			expected: []proto.Message{
				proto.Capture(2, "-1.5"),
				proto.Capture(1, "0"),
			},
		},
		{
			name:     "Unknown channel defaults to 1",
			input:    "^^stream(3,7)",
			expected: []proto.Message{proto.Capture(1, "7")},
		},
		{
			name:     "Trailing whitespace is ignored",
			input:    "^^change(2,1)\r\n",
			expected: []proto.Message{proto.Capture(2, "1")},
		},
		{
			name:     "Value keeps everything after the first comma",
			input:    "^^stream(1,2,3)",
			expected: []proto.Message{proto.Capture(1, "2,3")},
		},
		{
			name:     "Stream without arguments degrades to a log line",
			input:    "^^stream",
			expected: []proto.Message{proto.Log("^^stream\n")},
		},
		{
			name:     "Stream without value degrades to a log line",
			input:    "^^change(1)",
			expected: []proto.Message{proto.Log("^^change(1)\n")},
		},
		{
			name:  "Text before the first marker is its own segment",
			input: "ready^^stream(1,4)",
			expected: []proto.Message{
				proto.Log("^^ready\n"),
				proto.Capture(1, "4"),
			},
		},
		{
			name:     "Other control messages stay visible",
			input:    "^^version('v1.0.3')",
			expected: []proto.Message{proto.Log("^^version('v1.0.3')\n")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proto.Classify(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Classify(%q):\nexpected %#v\ngot      %#v", tt.input, tt.expected, got)
			}
		})
	}
}

func TestClassifyPlainTextIsVerbatim(t *testing.T) {
	inputs := []string{
		"a",
		" leading and trailing ",
		"-- comment\twith tab",
		"^ single caret",
		"line\r",
		"print('hi')",
	}

	for _, input := range inputs {
		got := proto.Classify(input)
		if len(got) != 1 {
			t.Fatalf("Classify(%q): expected exactly one message, got %d", input, len(got))
		}
		if got[0].Kind != proto.KindLog || got[0].Text != input {
			t.Errorf("Classify(%q): expected verbatim log line, got %#v", input, got[0])
		}
	}
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected proto.Call
		err      error
	}{
		{name: "Full call", input: "stream(1,0.25)", expected: proto.Call{Name: "stream", Channel: "1", Value: "0.25"}},
		{name: "Empty args", input: "unknown()", expected: proto.Call{Name: "unknown"}, err: proto.ErrMalformedCall},
		{name: "No parenthesis", input: "pubview", expected: proto.Call{Name: "pubview"}, err: proto.ErrMalformedCall},
		{name: "Nested closing parens are trimmed", input: "change(2,f(x)))", expected: proto.Call{Name: "change", Channel: "2", Value: "f(x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.ParseCall(tt.input)
			if !errors.Is(err, tt.err) {
				t.Errorf("expected error %v, got %v", tt.err, err)
			}
			if got != tt.expected {
				t.Errorf("expected %#v, got %#v", tt.expected, got)
			}
		})
	}
}

func TestSplitChunk(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Single line", input: "hello", expected: []string{"hello"}},
		{name: "Device line endings", input: "a\n\rb\n\r", expected: []string{"a", "b", ""}},
		{name: "CRLF is not a device line ending", input: "a\r\nb", expected: []string{"a\r\nb"}},
		{name: "Telemetry and text", input: "^^stream(1,2)\n\rok", expected: []string{"^^stream(1,2)", "ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proto.SplitChunk(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
