package monitoring

import "time"

const (
	StatusUnknown = "unknown"
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// MonitoredState is the persisted per (user, gateway) derived state. It is
// created when a subscription is created and removed with it. Status tracks
// the latest evaluation; LastNotifiedStatus only advances after a delivery
// attempt, which is what makes redelivery after a failed send possible.
type MonitoredState struct {
	UserID             int64     `json:"user_id"`
	GatewayID          string    `json:"gateway_id"`
	Status             string    `json:"status"`
	LastNotifiedStatus string    `json:"last_notified_status"`
	EvaluatedAt        time.Time `json:"evaluated_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EvaluatedState is the result of classifying one telemetry observation
// against a threshold, with display fields derived for notifications.
type EvaluatedState struct {
	Status           string    `json:"status"`
	Gateway          Gateway   `json:"gateway"`
	ThresholdMinutes int       `json:"threshold_minutes"`
	PowerWatts       float64   `json:"power_watts"`
	PowerText        string    `json:"power_text"`
	LastDatapoint    time.Time `json:"last_datapoint,omitempty"`
	LastSeenText     string    `json:"last_seen_text"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// TransitionEvent records one detected state change within a poll cycle.
// It is never persisted; the evaluation snapshot rides along so the
// dispatcher can render a message without another fetch.
type TransitionEvent struct {
	UserID     int64          `json:"user_id"`
	GatewayID  string         `json:"gateway_id"`
	Previous   string         `json:"previous"`
	Current    string         `json:"current"`
	At         time.Time      `json:"at"`
	Evaluation EvaluatedState `json:"evaluation"`
}
