package monitoring

import "time"

const (
	// ThresholdMinMinutes and ThresholdMaxMinutes bound the per-user
	// staleness threshold. Values outside the range are rejected.
	ThresholdMinMinutes = 1
	ThresholdMaxMinutes = 60

	// DefaultThresholdMinutes applies to users who never set a threshold.
	DefaultThresholdMinutes = 5
)

// Subscription ties a user to a gateway they want monitored. The threshold
// is the owner's current setting, resolved at listing time so that changes
// take effect on the next poll cycle.
type Subscription struct {
	UserID           int64     `json:"user_id"`
	GatewayID        string    `json:"gateway_id"`
	ThresholdMinutes int       `json:"threshold_minutes"`
	CreatedAt        time.Time `json:"created_at"`
}

// ValidateThreshold rejects thresholds outside [ThresholdMinMinutes, ThresholdMaxMinutes].
func ValidateThreshold(minutes int) error {
	if minutes < ThresholdMinMinutes || minutes > ThresholdMaxMinutes {
		return ErrThresholdOutOfRange
	}
	return nil
}

// GatewayStat counts subscribers of one gateway.
type GatewayStat struct {
	GatewayID   string `json:"gateway_id"`
	Subscribers int    `json:"subscribers"`
}

// SubscriptionStats summarizes the subscription store.
type SubscriptionStats struct {
	TotalUsers         int           `json:"total_users"`
	TotalSubscriptions int           `json:"total_subscriptions"`
	MonitoredGateways  int           `json:"monitored_gateways"`
	TopGateways        []GatewayStat `json:"top_gateways,omitempty"`
}
