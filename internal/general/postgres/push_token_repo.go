package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PushTokenRepo manages device push registrations. One active token per
// (user, device) pair; re-registering from the same device replaces the token.
type PushTokenRepo struct{}

// NewPushTokenRepo constructs a new PushTokenRepo.
func NewPushTokenRepo() ports.PushTokenRepository {
	return &PushTokenRepo{}
}

// Upsert inserts or refreshes the token for a (user, device) pair.
func (r *PushTokenRepo) Upsert(ctx context.Context, t *notify.PushToken) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO push_tokens (user_id, device_id, token, platform, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			token = EXCLUDED.token,
			platform = EXCLUDED.platform,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, t.UserID, t.DeviceID, t.Token, t.Platform, t.Active, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert push token: %w", err)
	}
	return nil
}

// GetActiveForUser returns the most recently refreshed active token for a
// user, or nil when the user has no registered device.
func (r *PushTokenRepo) GetActiveForUser(ctx context.Context, userID string) (*notify.PushToken, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var t notify.PushToken
	err = tx.QueryRow(ctx, `
		SELECT user_id, device_id, token, platform, active, updated_at
		FROM push_tokens
		WHERE user_id = $1 AND active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`, userID).Scan(&t.UserID, &t.DeviceID, &t.Token, &t.Platform, &t.Active, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query push token: %w", err)
	}
	return &t, nil
}

// DeactivateStaleBefore disables tokens not refreshed since the cutoff.
func (r *PushTokenRepo) DeactivateStaleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE push_tokens SET active = false
		WHERE active = true AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale push tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
