package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// SubscriptionRepository stores subscriptions and per-user settings.
type SubscriptionRepository struct {
	db               *sql.DB
	defaultThreshold int
}

// SubscriptionRepositoryOption customizes the repository.
type SubscriptionRepositoryOption func(*SubscriptionRepository)

// WithDefaultThreshold overrides the threshold used for users with no setting.
func WithDefaultThreshold(minutes int) SubscriptionRepositoryOption {
	return func(r *SubscriptionRepository) {
		if minutes >= monitoring.ThresholdMinMinutes && minutes <= monitoring.ThresholdMaxMinutes {
			r.defaultThreshold = minutes
		}
	}
}

// NewSubscriptionRepository constructs a repository.
func NewSubscriptionRepository(db *sql.DB, opts ...SubscriptionRepositoryOption) *SubscriptionRepository {
	repo := &SubscriptionRepository{db: db, defaultThreshold: monitoring.DefaultThresholdMinutes}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Create inserts a subscription, rejecting duplicates.
func (r *SubscriptionRepository) Create(ctx context.Context, sub monitoring.Subscription) error {
	if r == nil || r.db == nil {
		return errors.New("subscription repo: nil db")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, gateway_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, gateway_id) DO NOTHING`,
		sub.UserID, sub.GatewayID, sub.CreatedAt)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return monitoring.ErrAlreadySubscribed
	}
	return nil
}

// Delete removes a subscription, reporting whether it existed.
func (r *SubscriptionRepository) Delete(ctx context.Context, userID int64, gatewayID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("subscription repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
DELETE FROM subscriptions
WHERE user_id = $1 AND gateway_id = $2`, userID, gatewayID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListActive lists every subscription with the owner's current threshold.
// Threshold changes apply on the next listing, so the next poll cycle.
func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]monitoring.Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscription repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT s.user_id, s.gateway_id, COALESCE(u.threshold_minutes, $1), s.created_at
FROM subscriptions s
LEFT JOIN user_settings u ON u.user_id = s.user_id
ORDER BY s.created_at, s.user_id, s.gateway_id`, r.defaultThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListByUser lists one user's subscriptions with their current threshold.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]monitoring.Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscription repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT s.user_id, s.gateway_id, COALESCE(u.threshold_minutes, $2), s.created_at
FROM subscriptions s
LEFT JOIN user_settings u ON u.user_id = s.user_id
WHERE s.user_id = $1
ORDER BY s.created_at, s.gateway_id`, userID, r.defaultThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// SetThreshold upserts a user's staleness threshold.
func (r *SubscriptionRepository) SetThreshold(ctx context.Context, userID int64, minutes int) error {
	if r == nil || r.db == nil {
		return errors.New("subscription repo: nil db")
	}
	if err := monitoring.ValidateThreshold(minutes); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user_settings (user_id, threshold_minutes, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id)
DO UPDATE SET
	threshold_minutes = EXCLUDED.threshold_minutes,
	updated_at = EXCLUDED.updated_at`, userID, minutes, time.Now().UTC())
	return err
}

// Threshold reads a user's threshold, falling back to the default.
func (r *SubscriptionRepository) Threshold(ctx context.Context, userID int64) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("subscription repo: nil db")
	}
	var minutes int
	err := r.db.QueryRowContext(ctx, `
SELECT threshold_minutes FROM user_settings WHERE user_id = $1`, userID).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return r.defaultThreshold, nil
	}
	if err != nil {
		return 0, err
	}
	return minutes, nil
}

// Stats summarizes the subscription store.
func (r *SubscriptionRepository) Stats(ctx context.Context) (monitoring.SubscriptionStats, error) {
	stats := monitoring.SubscriptionStats{}
	if r == nil || r.db == nil {
		return stats, errors.New("subscription repo: nil db")
	}
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT user_id), COUNT(DISTINCT gateway_id)
FROM subscriptions`).Scan(&stats.TotalSubscriptions, &stats.TotalUsers, &stats.MonitoredGateways)
	if err != nil {
		return stats, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT gateway_id, COUNT(*) AS subscribers
FROM subscriptions
GROUP BY gateway_id
ORDER BY subscribers DESC, gateway_id
LIMIT 5`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var stat monitoring.GatewayStat
		if err := rows.Scan(&stat.GatewayID, &stat.Subscribers); err != nil {
			return stats, err
		}
		stats.TopGateways = append(stats.TopGateways, stat)
	}
	return stats, rows.Err()
}

func scanSubscriptions(rows *sql.Rows) ([]monitoring.Subscription, error) {
	var subs []monitoring.Subscription
	for rows.Next() {
		var sub monitoring.Subscription
		if err := rows.Scan(&sub.UserID, &sub.GatewayID, &sub.ThresholdMinutes, &sub.CreatedAt); err != nil {
			return nil, err
		}
		sub.CreatedAt = sub.CreatedAt.UTC()
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
