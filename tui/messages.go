package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"monome.org/druid/device"
	"monome.org/druid/proto"
	"monome.org/druid/repl"
)

// DeviceMsg carries one classified piece of device output.
type DeviceMsg struct {
	Message proto.Message
}

// StateMsg carries a connection state change of the session.
type StateMsg struct {
	Change device.StateChange
}

// NoticeMsg is a line for the output log that did not come from the device,
// such as transfer progress.
type NoticeMsg struct {
	Text string
}

// resultMsg delivers the result of a dispatched line.
type resultMsg struct {
	Result repl.Result
}

// Sender receives messages for the UI. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge moves session output into a running program. Messages arriving
// before SetSender is called are dropped.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender
}

// NewBridge returns a Bridge with no sender.
func NewBridge() *Bridge {
	return &Bridge{}
}

// SetSender sets where messages go. Safe to call from any goroutine.
func (b *Bridge) SetSender(sender Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = sender
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	sender := b.sender
	b.mu.RUnlock()
	if sender != nil {
		sender.Send(msg)
	}
}

// Notify sends text to the output log. It has the shape of the dispatcher's
// notify callback.
func (b *Bridge) Notify(text string) {
	b.send(NoticeMsg{Text: text})
}

// Forward relays device messages and state changes until ctx is done or
// both channels are closed.
func (b *Bridge) Forward(ctx context.Context, messages <-chan proto.Message, states <-chan device.StateChange) error {
	for messages != nil || states != nil {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			b.send(DeviceMsg{Message: msg})
		case change, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			b.send(StateMsg{Change: change})
		}
	}
	return nil
}
