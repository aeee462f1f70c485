package device

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"monome.org/druid/proto"
)

// Poller is the background reader of a Session. It drains the device,
// classifies what it reads and publishes the result on Messages. Failed
// reads slow it down to the retry interval; the following read reconnects.
type Poller struct {
	session       *Session
	logger        *slog.Logger
	pollInterval  time.Duration
	retryInterval time.Duration
	messages      chan proto.Message
}

// NewPoller creates a Poller for s using the intervals s was configured with.
func NewPoller(s *Session) *Poller {
	return &Poller{
		session:       s,
		logger:        s.logger.With("component", "poller"),
		pollInterval:  s.pollInterval,
		retryInterval: s.retryInterval,
		messages:      make(chan proto.Message, s.messageBuffer),
	}
}

// Messages returns the classified device output. Run blocks on it when it is
// full, so the consumer must keep draining it.
func (p *Poller) Messages() <-chan proto.Message {
	return p.messages
}

// Run polls until ctx is cancelled or the Session is closed. Device errors
// never stop it.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		delay := p.pollInterval
		data, err := p.session.Read(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			p.logger.Debug("Session closed, stopping")
			return nil
		case err != nil:
			p.logger.Debug("Read failed", "error", err)
			delay = p.retryInterval
		case len(data) > 0:
			if !p.publish(ctx, string(data)) {
				return nil
			}
		}

		timer.Reset(delay)
	}
}

func (p *Poller) publish(ctx context.Context, chunk string) bool {
	for _, line := range proto.SplitChunk(chunk) {
		for _, msg := range proto.Classify(line) {
			select {
			case p.messages <- msg:
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}
