package service

import (
	"context"
	"errors"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/ports"
)

// ApplyIntent executes a driver-originated order action. Terminal replays of
// the same action succeed silently without a second broadcast; replays toward
// a different terminal state are conflicts.
func (service *dispatchService) ApplyIntent(ctx context.Context, in ports.OrderIntentInput) (*order.Order, error) {
	target, err := intentTarget(in.Action)
	if err != nil {
		return nil, err
	}

	var o *order.Order
	var prev order.Status
	var releasedDriver string
	replayed := false

	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = service.orders.GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}

		prev = o.Status
		if o.DriverID != nil {
			releasedDriver = *o.DriverID
		}

		// the driver acting on the order must be the one assigned to it
		if !o.Status.Terminal() && (o.DriverID == nil || *o.DriverID != in.DriverID) {
			return protocol.Conflictf("order %s is not assigned to driver %s", in.OrderID, in.DriverID)
		}

		if o.Status.Terminal() {
			if o.Status == target {
				// duplicate of an already-applied transition, e.g. a retry
				// after a dropped ack
				replayed = true
				return nil
			}
			return protocol.Conflictf("order %s is already %s", in.OrderID, o.Status)
		}

		switch in.Action {
		case contracts.IntentDeliver:
			err = o.Deliver(in.Comment)
		case contracts.IntentCancel:
			err = o.Cancel(in.Reason, in.Comment)
		case contracts.IntentRedistribute:
			err = o.Redistribute()
		}
		if err != nil {
			switch {
			case errors.Is(err, order.ErrReasonRequired):
				return protocol.Validationf("cancellation reason is required").Wrap(err)
			case errors.Is(err, order.ErrCommentRequired):
				return protocol.Validationf("cancellation comment is required").Wrap(err)
			case errors.Is(err, order.ErrInvalidTransition):
				return protocol.Conflictf("order %s cannot go from %s to %s", in.OrderID, prev, target).Wrap(err)
			case errors.Is(err, order.ErrNoDriverAssigned):
				return protocol.Conflictf("order %s has no assigned driver", in.OrderID).Wrap(err)
			default:
				return err
			}
		}
		return service.orders.Save(ctx, o)
	})
	if err != nil {
		service.logger.Error(ctx, "order_intent_failed", "Order intent rejected", err,
			map[string]any{"order_id": in.OrderID, "driver_id": in.DriverID, "action": in.Action})
		return nil, err
	}

	if replayed {
		service.logger.Info(ctx, "order_intent_replayed", "Duplicate intent absorbed", map[string]any{
			"order_id": o.ID, "status": o.Status.String(), "action": in.Action,
		})
		return o, nil
	}

	service.publishStatus(ctx, o, prev, releasedDriver)
	service.logger.Info(ctx, "order_transitioned", "Order transitioned by driver intent", map[string]any{
		"order_id": o.ID, "from": prev.String(), "to": o.Status.String(), "driver_id": in.DriverID,
	})
	return o, nil
}

func intentTarget(action string) (order.Status, error) {
	switch action {
	case contracts.IntentDeliver:
		return order.StatusDelivered, nil
	case contracts.IntentCancel:
		return order.StatusCancelled, nil
	case contracts.IntentRedistribute:
		return order.StatusPending, nil
	default:
		return "", protocol.Validationf("unknown order action %q", action)
	}
}
