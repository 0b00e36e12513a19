package postgres

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/ports"
)

// NotificationRepo persists admin broadcasts and their per-recipient
// delivery rows.
type NotificationRepo struct{}

// NewNotificationRepo constructs a new NotificationRepo.
func NewNotificationRepo() ports.NotificationRepository {
	return &NotificationRepo{}
}

// CreateWithDeliveries inserts the notification and one delivery row per
// recipient in the same transaction.
func (r *NotificationRepo) CreateWithDeliveries(ctx context.Context, n *notify.Notification, deliveries []notify.Delivery) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO notifications (title, message, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, n.Title, n.Message, n.CreatedBy).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	for i := range deliveries {
		d := &deliveries[i]
		d.NotificationID = n.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO notification_deliveries (notification_id, user_id, push_status, push_error, read)
			VALUES ($1, $2, $3, $4, $5)
		`, d.NotificationID, d.UserID, string(d.PushStatus), d.PushError, d.Read)
		if err != nil {
			return fmt.Errorf("insert notification delivery: %w", err)
		}
	}
	return nil
}

// ListForUser returns the newest notifications addressed to a user.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT n.id, n.title, n.message, n.created_by, n.created_at, d.read
		FROM notifications n
		JOIN notification_deliveries d ON d.notification_id = n.id
		WHERE d.user_id = $1
		ORDER BY n.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications for user: %w", err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.CreatedBy, &n.CreatedAt, &n.Read); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// MarkRead flips the read flag on one recipient's delivery row.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE notification_deliveries
		SET read = true
		WHERE notification_id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// PruneOlderThan deletes notifications created before the cutoff. Delivery
// rows go with them via the FK cascade.
func (r *NotificationRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
