package service

import (
	"context"
	"encoding/json"
	"fmt"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/general/websocket"
	"courier-dispatch/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumers bridges broker messages into socket fan-out. Order transitions,
// presence deltas, and notification broadcasts all arrive here and get pushed
// to whoever is online; offline targets are skipped without ceremony.
type Consumers struct {
	logger      *logger.Logger
	client      *rabbitmq.Client
	hub         *websocket.Hub
	presenceSvc ports.PresenceService
}

// NewConsumers constructs the gateway's consumer set.
func NewConsumers(log *logger.Logger, client *rabbitmq.Client, hub *websocket.Hub, presenceSvc ports.PresenceService) *Consumers {
	return &Consumers{logger: log, client: client, hub: hub, presenceSvc: presenceSvc}
}

// Start launches one consumer goroutine per queue. They run until ctx ends.
func (c *Consumers) Start(ctx context.Context, prefetch int) {
	go c.client.ConsumeLoop(ctx, contracts.QueueOrderStatusUpdates, "gateway-order-status", prefetch, c.handleOrderStatus)
	go c.client.ConsumeLoop(ctx, contracts.QueuePresenceUpdates, "gateway-presence", prefetch, c.handlePresence)
	go c.client.ConsumeLoop(ctx, contracts.QueueNotificationEvents, "gateway-notify", prefetch, c.handleNotify)
}

// handleOrderStatus mirrors a committed order transition to its audience and
// applies the presence effect of the transition.
func (c *Consumers) handleOrderStatus(ctx context.Context, d amqp.Delivery) error {
	if d.RoutingKey == contracts.RouteOrderStatusPrefix+"rejected" {
		return c.handleIntentRejected(ctx, d)
	}

	var msg contracts.OrderStatusMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("unmarshal order status message: %w", err)
	}

	update := contracts.WSOrderUpdate{
		OrderID:     msg.OrderID,
		OrderNumber: msg.OrderNumber,
		Status:      msg.Status,
		PrevStatus:  msg.PrevStatus,
		DriverID:    msg.DriverID,
		Items:       msg.Items,
		Total:       msg.Total,
		Timestamp:   msg.Timestamp,
	}

	c.hub.BroadcastTopic(websocket.TopicOrders, contracts.EventOrderUpdate, update)
	c.hub.SendToUser(user.RoleClient, msg.ClientID, contracts.EventOrderUpdate, update)
	if msg.DriverID != "" {
		c.hub.SendToUser(user.RoleDriver, msg.DriverID, contracts.EventOrderUpdate, update)
	}

	c.applyPresenceEffect(ctx, msg)
	return nil
}

// applyPresenceEffect brackets the assigned driver's availability around the
// order lifecycle. For a redistribution the message carries the released
// driver even though the order itself no longer has one.
func (c *Consumers) applyPresenceEffect(ctx context.Context, msg contracts.OrderStatusMessage) {
	if msg.DriverID == "" {
		return
	}

	var err error
	switch order.Status(msg.Status) {
	case order.StatusInProgress:
		_, err = c.presenceSvc.BeginOrder(ctx, msg.DriverID)
	case order.StatusDelivered, order.StatusCancelled:
		_, err = c.presenceSvc.EndOrder(ctx, msg.DriverID)
	case order.StatusPending:
		if order.Status(msg.PrevStatus) == order.StatusInProgress {
			_, err = c.presenceSvc.EndOrder(ctx, msg.DriverID)
		}
	}
	if err != nil {
		c.logger.Error(ctx, "presence_effect_failed", "Failed to apply presence effect of order transition", err,
			map[string]any{"order_id": msg.OrderID, "driver_id": msg.DriverID, "status": msg.Status})
	}
}

// handleIntentRejected relays a refused intent to the initiating driver only.
func (c *Consumers) handleIntentRejected(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.OrderIntentRejected
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("unmarshal intent rejection: %w", err)
	}

	delivered := c.hub.SendToUser(user.RoleDriver, msg.DriverID, contracts.EventError, contracts.WSError{
		Code:    msg.Code,
		Message: msg.Message,
	})
	if !delivered {
		c.logger.Info(ctx, "rejection_target_offline", "Driver offline, rejection dropped", map[string]any{
			"driver_id": msg.DriverID, "order_id": msg.OrderID,
		})
	}
	return nil
}

// handlePresence mirrors a presence delta to admin watchers and reconciles
// the driver's own toggle.
func (c *Consumers) handlePresence(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.PresenceMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("unmarshal presence message: %w", err)
	}

	c.hub.BroadcastTopic(websocket.TopicDrivers, contracts.EventPresenceUpdate, contracts.WSPresenceUpdate{
		DriverID:  msg.DriverID,
		State:     msg.State,
		Location:  msg.Location,
		Timestamp: msg.Timestamp,
	})

	// locked while active, reverted preference once released
	state := msg.State
	c.hub.SendToUser(user.RoleDriver, msg.DriverID, contracts.EventActivationStatus, contracts.WSActivationStatus{
		Available: state == "AVAILABLE" || state == "ORDER_ACTIVE",
		Locked:    state == "ORDER_ACTIVE",
	})
	return nil
}

// handleNotify fans notification and system events out to online sessions.
func (c *Consumers) handleNotify(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case contracts.RouteSystemStatus:
		var msg contracts.SystemStatusMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return fmt.Errorf("unmarshal system status message: %w", err)
		}
		c.hub.BroadcastAll(contracts.EventSystemStatus, contracts.WSSystemStatus{
			Scope:     msg.Scope,
			Enabled:   msg.Enabled,
			Timestamp: msg.Timestamp,
		})
		return nil

	default:
		var msg contracts.NotificationMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return fmt.Errorf("unmarshal notification message: %w", err)
		}

		payload := contracts.WSNotification{
			NotificationID: msg.NotificationID,
			Title:          msg.Title,
			Message:        msg.Message,
			CreatedAt:      msg.CreatedAt,
		}
		for _, recipient := range msg.Recipients {
			sent := c.hub.SendToUser(user.RoleClient, recipient, contracts.EventNotificationNew, payload) ||
				c.hub.SendToUser(user.RoleDriver, recipient, contracts.EventNotificationNew, payload) ||
				c.hub.SendToUser(user.RoleAdmin, recipient, contracts.EventNotificationNew, payload)
			if !sent {
				c.logger.Debug(ctx, "notification_target_offline", "Recipient offline, socket delivery skipped",
					map[string]any{"notification_id": msg.NotificationID, "user_id": recipient})
			}
		}
		return nil
	}
}
