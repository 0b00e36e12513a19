package service

import (
	"context"
	"strings"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/ports"
)

// notificationFeed is the gateway's read-only view of the notification store.
type notificationFeed struct {
	uow  ports.UnitOfWork
	repo ports.NotificationRepository
}

// NewNotificationFeed constructs the feed used by notifications_fetch.
func NewNotificationFeed(uow ports.UnitOfWork, repo ports.NotificationRepository) ports.NotificationFeed {
	return &notificationFeed{uow: uow, repo: repo}
}

func (feed *notificationFeed) NotificationsFor(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	var out []notify.Notification
	err := feed.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = feed.repo.ListForUser(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips the caller's own delivery row. A repeat, or an id that was
// never delivered to this user, is a no-op.
func (feed *notificationFeed) MarkRead(ctx context.Context, notificationID, userID string) error {
	if strings.TrimSpace(notificationID) == "" {
		return protocol.Validationf("notification_id is required")
	}
	return feed.uow.WithinTx(ctx, func(ctx context.Context) error {
		return feed.repo.MarkRead(ctx, notificationID, userID)
	})
}
