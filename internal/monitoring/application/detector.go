package application

import (
	"context"
	"errors"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// StateRepository persists per (user, gateway) monitored state. Writes to a
// given key must be serialized by the implementation (keyed upsert), reads
// may be concurrent.
type StateRepository interface {
	Get(ctx context.Context, userID int64, gatewayID string) (*monitoring.MonitoredState, error)
	Upsert(ctx context.Context, state *monitoring.MonitoredState) error
	SetLastNotified(ctx context.Context, userID int64, gatewayID string, status string, at time.Time) error
	Delete(ctx context.Context, userID int64, gatewayID string) error
}

// Detector compares fresh evaluations against the persisted last-notified
// state and emits transition events. It owns every write to MonitoredState
// except the last-notified commit, which the dispatcher triggers after a
// delivery attempt.
type Detector struct {
	states StateRepository
	clock  Clock
}

// DetectorOption customizes the detector.
type DetectorOption func(*Detector)

// WithDetectorClock overrides the default clock.
func WithDetectorClock(clock Clock) DetectorOption {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDetector constructs a transition detector.
func NewDetector(states StateRepository, opts ...DetectorOption) (*Detector, error) {
	if states == nil {
		return nil, errors.New("detector: nil state repository")
	}
	detector := &Detector{states: states, clock: systemClock{}}
	for _, opt := range opts {
		opt(detector)
	}
	return detector, nil
}

// Detect records the evaluation and returns a transition event when the
// evaluated status differs from the last notified one. The first evaluation
// of a subscription only records a baseline and never emits an event.
// Repeated observations of an already-notified status emit nothing.
func (d *Detector) Detect(ctx context.Context, sub monitoring.Subscription, eval monitoring.EvaluatedState) (*monitoring.TransitionEvent, error) {
	if d == nil || d.states == nil {
		return nil, errors.New("detector: nil detector")
	}
	state, err := d.getState(ctx, sub.UserID, sub.GatewayID)
	if err != nil {
		return nil, err
	}
	now := d.clock.Now().UTC()

	if state == nil || state.LastNotifiedStatus == "" || state.LastNotifiedStatus == monitoring.StatusUnknown {
		baseline := &monitoring.MonitoredState{
			UserID:             sub.UserID,
			GatewayID:          sub.GatewayID,
			Status:             eval.Status,
			LastNotifiedStatus: eval.Status,
			EvaluatedAt:        now,
			UpdatedAt:          now,
		}
		return nil, d.writeState(ctx, baseline)
	}

	previous := state.LastNotifiedStatus
	state.Status = eval.Status
	state.EvaluatedAt = now
	state.UpdatedAt = now
	if err := d.writeState(ctx, state); err != nil {
		// No partial commit: the pair is re-evaluated next cycle.
		return nil, err
	}
	if eval.Status == previous {
		return nil, nil
	}
	return &monitoring.TransitionEvent{
		UserID:     sub.UserID,
		GatewayID:  sub.GatewayID,
		Previous:   previous,
		Current:    eval.Status,
		At:         now,
		Evaluation: eval,
	}, nil
}

// CommitNotified advances the last-notified status after the dispatcher
// attempted delivery. Skipping this call keeps the transition eligible for
// redelivery on the next cycle.
func (d *Detector) CommitNotified(ctx context.Context, userID int64, gatewayID string, status string) error {
	if d == nil || d.states == nil {
		return errors.New("detector: nil detector")
	}
	at := d.clock.Now().UTC()
	if err := d.states.SetLastNotified(ctx, userID, gatewayID, status, at); err != nil {
		return d.states.SetLastNotified(ctx, userID, gatewayID, status, at)
	}
	return nil
}

func (d *Detector) getState(ctx context.Context, userID int64, gatewayID string) (*monitoring.MonitoredState, error) {
	state, err := d.states.Get(ctx, userID, gatewayID)
	if err != nil {
		return d.states.Get(ctx, userID, gatewayID)
	}
	return state, nil
}

// writeState retries a failed persistence write once within the cycle.
func (d *Detector) writeState(ctx context.Context, state *monitoring.MonitoredState) error {
	if err := d.states.Upsert(ctx, state); err != nil {
		return d.states.Upsert(ctx, state)
	}
	return nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
