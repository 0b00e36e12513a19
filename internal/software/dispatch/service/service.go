package service

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"
)

// dispatchService is the sole writer of order state. Every transition runs
// inside a transaction holding the order's row lock, and every committed
// transition leaves as exactly one status message.
type dispatchService struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	orders   ports.OrderRepository
	presence ports.PresenceRepository
	pub      ports.MessagePublisher
}

// NewDispatchService constructs the dispatch service.
func NewDispatchService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	orders ports.OrderRepository,
	presenceRepo ports.PresenceRepository,
	pub ports.MessagePublisher,
) ports.DispatchService {
	return &dispatchService{logger: log, uow: uow, orders: orders, presence: presenceRepo, pub: pub}
}

// publishStatus announces a committed transition. driverID names the driver
// the transition concerns, which for a redistribution is the released driver
// even though the order itself no longer carries one.
func (service *dispatchService) publishStatus(ctx context.Context, o *order.Order, prevStatus order.Status, driverID string) {
	msg := contracts.OrderStatusMessage{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      o.Status.String(),
		PrevStatus:  prevStatus.String(),
		ClientID:    o.ClientID,
		DriverID:    driverID,
		Items:       o.Items,
		Total:       o.Total,
		Timestamp:   time.Now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: contracts.NewCorrelationID(),
			Producer:      "dispatch-service",
			SentAt:        time.Now().UTC(),
		},
	}

	key := contracts.RouteOrderStatusPrefix + o.Status.String()
	if err := service.pub.Publish(ctx, contracts.ExchangeOrderTopic, key, msg); err != nil {
		service.logger.Error(ctx, "order_status_publish_failed", "Failed to publish order status update", err,
			map[string]any{"order_id": o.ID, "status": o.Status.String()})
	}
}
