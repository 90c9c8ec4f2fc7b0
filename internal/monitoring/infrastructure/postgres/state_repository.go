package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// StateRepository stores per (user, gateway) monitored state.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository constructs a repository.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get fetches one monitored state, nil when absent.
func (r *StateRepository) Get(ctx context.Context, userID int64, gatewayID string) (*monitoring.MonitoredState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("state repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, gateway_id, status, last_notified_status, evaluated_at, updated_at
FROM monitored_states
WHERE user_id = $1 AND gateway_id = $2`, userID, gatewayID)

	var state monitoring.MonitoredState
	var evaluatedAt sql.NullTime
	if err := row.Scan(
		&state.UserID,
		&state.GatewayID,
		&state.Status,
		&state.LastNotifiedStatus,
		&evaluatedAt,
		&state.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if evaluatedAt.Valid {
		state.EvaluatedAt = evaluatedAt.Time.UTC()
	}
	state.UpdatedAt = state.UpdatedAt.UTC()
	return &state, nil
}

// Upsert inserts or updates a monitored state.
func (r *StateRepository) Upsert(ctx context.Context, state *monitoring.MonitoredState) error {
	if r == nil || r.db == nil {
		return errors.New("state repo: nil db")
	}
	if state == nil {
		return errors.New("state repo: nil state")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO monitored_states (
	user_id, gateway_id, status, last_notified_status, evaluated_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (user_id, gateway_id)
DO UPDATE SET
	status = EXCLUDED.status,
	last_notified_status = EXCLUDED.last_notified_status,
	evaluated_at = EXCLUDED.evaluated_at,
	updated_at = EXCLUDED.updated_at`,
		state.UserID,
		state.GatewayID,
		state.Status,
		state.LastNotifiedStatus,
		sql.NullTime{Time: state.EvaluatedAt, Valid: !state.EvaluatedAt.IsZero()},
		state.UpdatedAt,
	)
	return err
}

// SetLastNotified advances the last-notified marker after a delivery.
func (r *StateRepository) SetLastNotified(ctx context.Context, userID int64, gatewayID string, status string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("state repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE monitored_states
SET last_notified_status = $3, updated_at = $4
WHERE user_id = $1 AND gateway_id = $2`, userID, gatewayID, status, at.UTC())
	return err
}

// Delete removes a monitored state.
func (r *StateRepository) Delete(ctx context.Context, userID int64, gatewayID string) error {
	if r == nil || r.db == nil {
		return errors.New("state repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM monitored_states
WHERE user_id = $1 AND gateway_id = $2`, userID, gatewayID)
	return err
}
