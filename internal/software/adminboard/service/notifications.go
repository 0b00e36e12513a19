package service

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/ports"

	"github.com/google/uuid"
)

// SendNotification persists an admin broadcast with one delivery row per
// recipient, attempts a best-effort push to each, then fans the event out to
// the gateways for sessions that are online right now. A recipient with no
// active token is recorded as skipped, never as an error.
func (service *adminService) SendNotification(ctx context.Context, in ports.SendNotificationInput) (*ports.SendNotificationResult, error) {
	n, err := notify.NewNotification(uuid.NewString(), in.Title, in.Message, in.CreatedBy, in.Recipients)
	if err != nil {
		return nil, protocol.Validationf("notification rejected").Wrap(err)
	}

	deliveries := make([]notify.Delivery, 0, len(in.Recipients))
	for _, userID := range in.Recipients {
		deliveries = append(deliveries, service.attemptPush(ctx, n, userID))
	}

	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		return service.notes.CreateWithDeliveries(ctx, n, deliveries)
	})
	if err != nil {
		return nil, err
	}

	service.publishNotification(ctx, n, in.Recipients)

	service.logger.Info(ctx, "notification_sent", "Notification fanned out", map[string]any{
		"notification_id": n.ID, "recipients": len(in.Recipients),
	})
	return &ports.SendNotificationResult{Notification: n, Deliveries: deliveries}, nil
}

// attemptPush resolves the recipient's active token and tries one push. The
// outcome lands on the delivery row either way.
func (service *adminService) attemptPush(ctx context.Context, n *notify.Notification, userID string) notify.Delivery {
	d := notify.Delivery{
		NotificationID: n.ID,
		UserID:         userID,
		PushStatus:     notify.PushSent,
		CreatedAt:      time.Now().UTC(),
	}

	var token *notify.PushToken
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		token, err = service.tokens.GetActiveForUser(ctx, userID)
		return err
	})
	if err != nil {
		d.PushStatus = notify.PushFailed
		d.PushError = err.Error()
		return d
	}
	if token == nil {
		d.PushStatus = notify.PushSkippedNoToken
		return d
	}

	if err := service.push.Push(ctx, token.Token, n.Title, n.Message); err != nil {
		service.logger.Error(ctx, "push_failed", "Push delivery failed", err, map[string]any{
			"notification_id": n.ID, "user_id": userID,
		})
		d.PushStatus = notify.PushFailed
		d.PushError = err.Error()
	}
	return d
}

func (service *adminService) publishNotification(ctx context.Context, n *notify.Notification, recipients []string) {
	msg := contracts.NotificationMessage{
		NotificationID: n.ID,
		Title:          n.Title,
		Message:        n.Message,
		Recipients:     recipients,
		CreatedAt:      n.CreatedAt,
		Envelope: contracts.Envelope{
			CorrelationID: contracts.NewCorrelationID(),
			Producer:      "admin-service",
			SentAt:        time.Now().UTC(),
		},
	}
	if err := service.pub.Publish(ctx, contracts.ExchangeNotifyFanout, contracts.RouteNotificationCreated, msg); err != nil {
		service.logger.Error(ctx, "notification_publish_failed", "Failed to publish notification event", err,
			map[string]any{"notification_id": n.ID})
	}
}

// ListNotifications returns the recipient's notification history, newest
// first.
func (service *adminService) ListNotifications(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var out []notify.Notification
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = service.notes.ListForUser(ctx, userID, limit)
		return err
	})
	return out, err
}
