package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// IntentConsumer drains the order intent queue and applies each action
// through the dispatch service. Rejections are published back to the gateway
// for the initiating session; they never fail the delivery.
type IntentConsumer struct {
	logger *logger.Logger
	client *rabbitmq.Client
	pub    ports.MessagePublisher
	svc    ports.DispatchService
}

// NewIntentConsumer constructs the intent consumer.
func NewIntentConsumer(log *logger.Logger, client *rabbitmq.Client, pub ports.MessagePublisher, svc ports.DispatchService) *IntentConsumer {
	return &IntentConsumer{logger: log, client: client, pub: pub, svc: svc}
}

// Start launches the consumer goroutine. It runs until ctx ends.
func (c *IntentConsumer) Start(ctx context.Context, prefetch int) {
	go c.client.ConsumeLoop(ctx, contracts.QueueOrderIntents, "dispatch-intents", prefetch, c.handle)
}

func (c *IntentConsumer) handle(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.OrderIntentMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("unmarshal order intent: %w", err)
	}

	_, err := c.svc.ApplyIntent(ctx, ports.OrderIntentInput{
		Action:   msg.Action,
		OrderID:  msg.OrderID,
		DriverID: msg.DriverID,
		DeviceID: msg.DeviceID,
		Comment:  msg.Comment,
		Reason:   msg.Reason,
	})
	if err != nil {
		kind := protocol.KindOf(err)
		if kind == "" {
			// infrastructure failure: nack so the broker redelivers or drops
			return err
		}
		c.publishRejection(ctx, msg, string(kind), err.Error())
	}
	return nil
}

func (c *IntentConsumer) publishRejection(ctx context.Context, intent contracts.OrderIntentMessage, code, message string) {
	rej := contracts.OrderIntentRejected{
		OrderID:  intent.OrderID,
		DriverID: intent.DriverID,
		DeviceID: intent.DeviceID,
		Code:     code,
		Message:  message,
		Envelope: contracts.Envelope{
			CorrelationID: intent.CorrelationID,
			Producer:      "dispatch-service",
			SentAt:        time.Now().UTC(),
		},
	}

	key := contracts.RouteOrderStatusPrefix + "rejected"
	if err := c.pub.Publish(ctx, contracts.ExchangeOrderTopic, key, rej); err != nil {
		c.logger.Error(ctx, "rejection_publish_failed", "Failed to publish intent rejection", err,
			map[string]any{"order_id": intent.OrderID, "driver_id": intent.DriverID})
	}
}
