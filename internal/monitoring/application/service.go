package application

import (
	"context"
	"errors"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// SubscriptionRepository persists subscriptions and per-user thresholds.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub monitoring.Subscription) error
	Delete(ctx context.Context, userID int64, gatewayID string) (bool, error)
	ListActive(ctx context.Context) ([]monitoring.Subscription, error)
	ListByUser(ctx context.Context, userID int64) ([]monitoring.Subscription, error)
	SetThreshold(ctx context.Context, userID int64, minutes int) error
	Threshold(ctx context.Context, userID int64) (int, error)
	Stats(ctx context.Context) (monitoring.SubscriptionStats, error)
}

// GatewayStatus is one on-demand status answer. Err is set when the
// telemetry source could not be consulted for that gateway.
type GatewayStatus struct {
	GatewayID  string                     `json:"gateway_id"`
	Evaluation *monitoring.EvaluatedState `json:"evaluation,omitempty"`
	Err        error                      `json:"-"`
	Error      string                     `json:"error,omitempty"`
}

// Service handles subscription lifecycle and on-demand status queries.
type Service struct {
	subscriptions SubscriptionRepository
	states        StateRepository
	fetcher       TelemetryFetcher
	clock         Clock
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithServiceClock overrides the default clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs the subscription service.
func NewService(subscriptions SubscriptionRepository, states StateRepository, fetcher TelemetryFetcher, opts ...ServiceOption) (*Service, error) {
	if subscriptions == nil {
		return nil, errors.New("monitoring service: nil subscription repository")
	}
	if states == nil {
		return nil, errors.New("monitoring service: nil state repository")
	}
	if fetcher == nil {
		return nil, errors.New("monitoring service: nil fetcher")
	}
	service := &Service{
		subscriptions: subscriptions,
		states:        states,
		fetcher:       fetcher,
		clock:         systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Subscribe registers a (user, gateway) pair. The gateway id is verified
// against the telemetry source first; a duplicate subscription is rejected
// without touching monitored state. On success the monitored state starts
// as unknown so the first observation records a baseline without notifying.
func (s *Service) Subscribe(ctx context.Context, userID int64, gatewayID string) (monitoring.Gateway, error) {
	if s == nil {
		return monitoring.Gateway{}, errors.New("monitoring service: nil service")
	}
	if userID == 0 || gatewayID == "" {
		return monitoring.Gateway{}, errors.New("monitoring service: user and gateway required")
	}

	telemetry, err := s.fetcher.Fetch(ctx, gatewayID)
	if err != nil {
		if fetchErr, ok := monitoring.AsFetchError(err); ok && fetchErr.Kind == monitoring.FetchNotFound {
			return monitoring.Gateway{}, monitoring.ErrUnknownGateway
		}
		return monitoring.Gateway{}, err
	}

	now := s.clock.Now().UTC()
	sub := monitoring.Subscription{UserID: userID, GatewayID: gatewayID, CreatedAt: now}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return monitoring.Gateway{}, err
	}
	state := &monitoring.MonitoredState{
		UserID:             userID,
		GatewayID:          gatewayID,
		Status:             monitoring.StatusUnknown,
		LastNotifiedStatus: monitoring.StatusUnknown,
		UpdatedAt:          now,
	}
	if err := s.states.Upsert(ctx, state); err != nil {
		return monitoring.Gateway{}, err
	}
	return telemetry.Gateway, nil
}

// Unsubscribe removes a subscription and cascades its monitored state.
func (s *Service) Unsubscribe(ctx context.Context, userID int64, gatewayID string) error {
	if s == nil {
		return errors.New("monitoring service: nil service")
	}
	removed, err := s.subscriptions.Delete(ctx, userID, gatewayID)
	if err != nil {
		return err
	}
	if !removed {
		return monitoring.ErrNotSubscribed
	}
	return s.states.Delete(ctx, userID, gatewayID)
}

// Subscriptions lists a user's subscriptions.
func (s *Service) Subscriptions(ctx context.Context, userID int64) ([]monitoring.Subscription, error) {
	if s == nil {
		return nil, errors.New("monitoring service: nil service")
	}
	return s.subscriptions.ListByUser(ctx, userID)
}

// SetThreshold updates a user's staleness threshold. Out-of-range values
// are rejected without mutating anything; the new value applies on the
// next poll cycle because thresholds are read at evaluation time.
func (s *Service) SetThreshold(ctx context.Context, userID int64, minutes int) error {
	if s == nil {
		return errors.New("monitoring service: nil service")
	}
	if err := monitoring.ValidateThreshold(minutes); err != nil {
		return err
	}
	return s.subscriptions.SetThreshold(ctx, userID, minutes)
}

// Threshold reads a user's staleness threshold.
func (s *Service) Threshold(ctx context.Context, userID int64) (int, error) {
	if s == nil {
		return 0, errors.New("monitoring service: nil service")
	}
	return s.subscriptions.Threshold(ctx, userID)
}

// Status evaluates every subscription of a user on demand. Fetch failures
// are reported per gateway rather than failing the whole query.
func (s *Service) Status(ctx context.Context, userID int64) ([]GatewayStatus, error) {
	if s == nil {
		return nil, errors.New("monitoring service: nil service")
	}
	subs, err := s.subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	results := make([]GatewayStatus, 0, len(subs))
	for _, sub := range subs {
		telemetry, err := s.fetcher.Fetch(ctx, sub.GatewayID)
		if err != nil {
			results = append(results, GatewayStatus{GatewayID: sub.GatewayID, Err: err, Error: err.Error()})
			continue
		}
		eval := Evaluate(telemetry, sub.ThresholdMinutes, now)
		results = append(results, GatewayStatus{GatewayID: sub.GatewayID, Evaluation: &eval})
	}
	return results, nil
}

// Stats summarizes the subscription store.
func (s *Service) Stats(ctx context.Context) (monitoring.SubscriptionStats, error) {
	if s == nil {
		return monitoring.SubscriptionStats{}, errors.New("monitoring service: nil service")
	}
	return s.subscriptions.Stats(ctx)
}

// GeneratedAt stamps exports.
func (s *Service) GeneratedAt() time.Time {
	if s == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}
