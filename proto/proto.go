package proto

const (
	// Marker frames every control and telemetry message on the wire.
	Marker = "^^"

	// LineEnd terminates lines coming from the device. Note the unusual order.
	LineEnd = "\n\r"

	// CommandEnd terminates raw commands sent to the device.
	CommandEnd = "\r\n"

	// Host to device control sequences
	CmdStartReceive = Marker + "s" // begin script receive
	CmdWrite        = Marker + "w" // commit received script to flash
	CmdExecute      = Marker + "e" // run received script without persisting
	CmdPrint        = Marker + "p" // print the current user script

	// Telemetry calls emitted by the device
	CallStream = "stream"
	CallChange = "change"
)

// Kind tells apart the two things the device can say.
type Kind int

const (
	KindLog     Kind = iota // Opaque text for the scrollback
	KindCapture             // Input telemetry for a capture channel
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// Message is one classified unit of device output.
type Message struct {
	Kind Kind
	// Channel is the capture channel (1 or 2). Zero for log lines.
	Channel int
	// Value is the raw capture payload, exactly as sent by the device.
	Value string
	// Text is the log line content.
	Text string
}

// Log builds a log message.
func Log(text string) Message {
	return Message{Kind: KindLog, Text: text}
}

// Capture builds a capture message.
func Capture(channel int, value string) Message {
	return Message{Kind: KindCapture, Channel: channel, Value: value}
}
