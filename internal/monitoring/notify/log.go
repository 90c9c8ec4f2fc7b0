package notify

import (
	"context"
	"log"
)

// LogChannel writes messages to the process log. It stands in when no
// delivery transport is configured.
type LogChannel struct {
	logger *log.Logger
}

// NewLogChannel constructs a log channel.
func NewLogChannel(logger *log.Logger) *LogChannel {
	if logger == nil {
		logger = log.Default()
	}
	return &LogChannel{logger: logger}
}

// Send logs the message instead of delivering it.
func (ch *LogChannel) Send(ctx context.Context, recipient int64, text string) error {
	_ = ctx
	ch.logger.Printf("notify (log only): recipient=%d\n%s", recipient, text)
	return nil
}
