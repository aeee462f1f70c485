package repl

import (
	"fmt"
	"strings"

	"monome.org/druid/device"
	"monome.org/druid/proto"
)

const (
	onlineNotice = " <online!>\n"
	lostNotice   = " <lost connection>\n"
)

// FormatCapture renders a capture as shown in the capture fields.
func FormatCapture(m proto.Message) string {
	return fmt.Sprintf("input[%d] = %s", m.Channel, m.Value)
}

// FormatLog renders a log line for the output log. Carriage returns are
// dropped and every line ends in a newline.
func FormatLog(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

// FormatResult renders what the output log shows for a dispatched line, or
// "" when there is nothing to show.
func FormatResult(res Result) string {
	switch {
	case res.Message != "":
		return FormatLog(res.Message)
	case res.Err != nil:
		return FormatLog(fmt.Sprintf("%s failed: %v", res.Command.Kind, res.Err))
	default:
		return ""
	}
}

// StateNotices turns state changes into connection notices, reporting only
// actual transitions. The zero value assumes the device starts disconnected.
type StateNotices struct {
	last device.State
}

// Notice returns the notice for change, or "" if the state did not change.
func (n *StateNotices) Notice(change device.StateChange) string {
	if change.State == n.last {
		return ""
	}
	n.last = change.State
	if change.State == device.Connected {
		return onlineNotice
	}
	return lostNotice
}
