package application

import (
	"context"
	"errors"
	"log"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// Transport delivers one rendered message to one recipient, best effort.
type Transport interface {
	Send(ctx context.Context, recipient int64, text string) error
}

// Renderer turns a user's batch of transition events into message text.
type Renderer interface {
	Render(events []monitoring.TransitionEvent) (string, error)
}

// Committer records that a transition was handed to the transport.
type Committer interface {
	CommitNotified(ctx context.Context, userID int64, gatewayID string, status string) error
}

// DispatchReport summarizes one dispatch pass.
type DispatchReport struct {
	Events    int
	Delivered int
	Failed    int
	Errors    map[int64]error
}

// Dispatcher delivers transition events. Within one cycle, offline
// transitions go out before online ones, events for the same user are
// batched into a single message, and a failure for one recipient never
// blocks the others. Last-notified state is committed only after the
// transport accepted the message.
type Dispatcher struct {
	transport Transport
	renderer  Renderer
	committer Committer
	logger    *log.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(transport Transport, renderer Renderer, committer Committer, logger *log.Logger) (*Dispatcher, error) {
	if transport == nil {
		return nil, errors.New("dispatcher: nil transport")
	}
	if renderer == nil {
		return nil, errors.New("dispatcher: nil renderer")
	}
	if committer == nil {
		return nil, errors.New("dispatcher: nil committer")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{transport: transport, renderer: renderer, committer: committer, logger: logger}, nil
}

// Dispatch delivers the cycle's events and returns a report. It never
// returns an error: per-recipient failures are recorded and retried on the
// next cycle through the uncommitted last-notified state.
func (d *Dispatcher) Dispatch(ctx context.Context, events []monitoring.TransitionEvent) DispatchReport {
	report := DispatchReport{Events: len(events), Errors: make(map[int64]error)}
	if d == nil || len(events) == 0 {
		return report
	}

	for _, userID := range recipientOrder(events) {
		batch := userBatch(events, userID)
		text, err := d.renderer.Render(batch)
		if err != nil {
			report.Failed++
			report.Errors[userID] = err
			d.logger.Printf("dispatch render failed: user=%d err=%v", userID, err)
			continue
		}
		if err := d.transport.Send(ctx, userID, text); err != nil {
			report.Failed++
			report.Errors[userID] = err
			d.logger.Printf("dispatch send failed: user=%d err=%v", userID, err)
			continue
		}
		report.Delivered++
		for _, event := range batch {
			if err := d.committer.CommitNotified(ctx, event.UserID, event.GatewayID, event.Current); err != nil {
				d.logger.Printf("dispatch commit failed: user=%d gateway=%s err=%v", event.UserID, event.GatewayID, err)
			}
		}
	}
	return report
}

// recipientOrder lists users so that anyone with an offline transition is
// served before users with only recoveries. Order is otherwise stable on
// discovery order.
func recipientOrder(events []monitoring.TransitionEvent) []int64 {
	seen := make(map[int64]bool)
	var order []int64
	for _, event := range events {
		if event.Current != monitoring.StatusOffline || seen[event.UserID] {
			continue
		}
		seen[event.UserID] = true
		order = append(order, event.UserID)
	}
	for _, event := range events {
		if seen[event.UserID] {
			continue
		}
		seen[event.UserID] = true
		order = append(order, event.UserID)
	}
	return order
}

// userBatch collects one user's events. Offline transitions lead the batch;
// within each group the gateways keep discovery order.
func userBatch(events []monitoring.TransitionEvent, userID int64) []monitoring.TransitionEvent {
	var batch []monitoring.TransitionEvent
	for _, event := range events {
		if event.UserID == userID && event.Current == monitoring.StatusOffline {
			batch = append(batch, event)
		}
	}
	for _, event := range events {
		if event.UserID == userID && event.Current != monitoring.StatusOffline {
			batch = append(batch, event)
		}
	}
	return batch
}
