package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

type pairKey struct {
	userID    int64
	gatewayID string
}

// SubscriptionRepository is an in-memory subscription store.
type SubscriptionRepository struct {
	mu               sync.RWMutex
	subs             map[pairKey]monitoring.Subscription
	thresholds       map[int64]int
	order            []pairKey
	defaultThreshold int
}

// NewSubscriptionRepository constructs a repository.
func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		subs:             make(map[pairKey]monitoring.Subscription),
		thresholds:       make(map[int64]int),
		defaultThreshold: monitoring.DefaultThresholdMinutes,
	}
}

// Create inserts a subscription, rejecting duplicates.
func (r *SubscriptionRepository) Create(ctx context.Context, sub monitoring.Subscription) error {
	_ = ctx
	key := pairKey{userID: sub.UserID, gatewayID: sub.GatewayID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[key]; exists {
		return monitoring.ErrAlreadySubscribed
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	r.subs[key] = sub
	r.order = append(r.order, key)
	return nil
}

// Delete removes a subscription, reporting whether it existed.
func (r *SubscriptionRepository) Delete(ctx context.Context, userID int64, gatewayID string) (bool, error) {
	_ = ctx
	key := pairKey{userID: userID, gatewayID: gatewayID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[key]; !exists {
		return false, nil
	}
	delete(r.subs, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// ListActive lists every subscription in creation order with the owner's
// current threshold resolved.
func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]monitoring.Subscription, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := make([]monitoring.Subscription, 0, len(r.order))
	for _, key := range r.order {
		subs = append(subs, r.resolve(r.subs[key]))
	}
	return subs, nil
}

// ListByUser lists one user's subscriptions in creation order.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]monitoring.Subscription, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []monitoring.Subscription
	for _, key := range r.order {
		if key.userID == userID {
			subs = append(subs, r.resolve(r.subs[key]))
		}
	}
	return subs, nil
}

// SetThreshold stores a user's staleness threshold.
func (r *SubscriptionRepository) SetThreshold(ctx context.Context, userID int64, minutes int) error {
	_ = ctx
	if err := monitoring.ValidateThreshold(minutes); err != nil {
		return err
	}
	r.mu.Lock()
	r.thresholds[userID] = minutes
	r.mu.Unlock()
	return nil
}

// Threshold reads a user's threshold, falling back to the default.
func (r *SubscriptionRepository) Threshold(ctx context.Context, userID int64) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if minutes, ok := r.thresholds[userID]; ok {
		return minutes, nil
	}
	return r.defaultThreshold, nil
}

// Stats summarizes the store.
func (r *SubscriptionRepository) Stats(ctx context.Context) (monitoring.SubscriptionStats, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[int64]struct{})
	gateways := make(map[string]int)
	for key := range r.subs {
		users[key.userID] = struct{}{}
		gateways[key.gatewayID]++
	}
	stats := monitoring.SubscriptionStats{
		TotalUsers:         len(users),
		TotalSubscriptions: len(r.subs),
		MonitoredGateways:  len(gateways),
	}
	for gatewayID, subscribers := range gateways {
		stats.TopGateways = append(stats.TopGateways, monitoring.GatewayStat{GatewayID: gatewayID, Subscribers: subscribers})
	}
	sort.Slice(stats.TopGateways, func(i, j int) bool {
		if stats.TopGateways[i].Subscribers != stats.TopGateways[j].Subscribers {
			return stats.TopGateways[i].Subscribers > stats.TopGateways[j].Subscribers
		}
		return stats.TopGateways[i].GatewayID < stats.TopGateways[j].GatewayID
	})
	if len(stats.TopGateways) > 5 {
		stats.TopGateways = stats.TopGateways[:5]
	}
	return stats, nil
}

func (r *SubscriptionRepository) resolve(sub monitoring.Subscription) monitoring.Subscription {
	if minutes, ok := r.thresholds[sub.UserID]; ok {
		sub.ThresholdMinutes = minutes
	} else {
		sub.ThresholdMinutes = r.defaultThreshold
	}
	return sub
}

// StateRepository is an in-memory monitored state store.
type StateRepository struct {
	mu   sync.RWMutex
	data map[pairKey]monitoring.MonitoredState
}

// NewStateRepository constructs a repository.
func NewStateRepository() *StateRepository {
	return &StateRepository{data: make(map[pairKey]monitoring.MonitoredState)}
}

// Get fetches one monitored state, nil when absent.
func (r *StateRepository) Get(ctx context.Context, userID int64, gatewayID string) (*monitoring.MonitoredState, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.data[pairKey{userID: userID, gatewayID: gatewayID}]
	if !ok {
		return nil, nil
	}
	copy := state
	return &copy, nil
}

// Upsert stores a monitored state.
func (r *StateRepository) Upsert(ctx context.Context, state *monitoring.MonitoredState) error {
	_ = ctx
	if state == nil {
		return nil
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.data[pairKey{userID: state.UserID, gatewayID: state.GatewayID}] = *state
	r.mu.Unlock()
	return nil
}

// SetLastNotified advances the last-notified marker.
func (r *StateRepository) SetLastNotified(ctx context.Context, userID int64, gatewayID string, status string, at time.Time) error {
	_ = ctx
	key := pairKey{userID: userID, gatewayID: gatewayID}
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.data[key]
	if !ok {
		return nil
	}
	state.LastNotifiedStatus = status
	state.UpdatedAt = at.UTC()
	r.data[key] = state
	return nil
}

// Delete removes a monitored state.
func (r *StateRepository) Delete(ctx context.Context, userID int64, gatewayID string) error {
	_ = ctx
	r.mu.Lock()
	delete(r.data, pairKey{userID: userID, gatewayID: gatewayID})
	r.mu.Unlock()
	return nil
}
