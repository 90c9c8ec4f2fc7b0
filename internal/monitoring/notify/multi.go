package notify

import (
	"context"
	"errors"

	"gateway-monitor/internal/monitoring/application"
)

// MultiTransport fans a message out to multiple channels. Delivery counts
// as successful when at least one channel accepted the message.
type MultiTransport struct {
	channels []application.Transport
}

// NewMultiTransport constructs a MultiTransport.
func NewMultiTransport(channels ...application.Transport) *MultiTransport {
	return &MultiTransport{channels: channels}
}

// Send forwards the message to all channels.
func (m *MultiTransport) Send(ctx context.Context, recipient int64, text string) error {
	if m == nil || len(m.channels) == 0 {
		return errors.New("multi transport: no channels")
	}
	var lastErr error
	delivered := false
	for _, channel := range m.channels {
		if channel == nil {
			continue
		}
		if err := channel.Send(ctx, recipient, text); err != nil {
			lastErr = err
			continue
		}
		delivered = true
	}
	if !delivered {
		return lastErr
	}
	return nil
}
