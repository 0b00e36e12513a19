package service

import (
	"context"
	"errors"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/ports"
)

// CreateOrder persists a fresh PENDING order and announces it.
func (service *dispatchService) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		return service.orders.Create(ctx, o)
	})
	if err != nil {
		service.logger.Error(ctx, "order_create_failed", "Failed to create order", err,
			map[string]any{"order_number": o.Number, "client_id": o.ClientID})
		return nil, err
	}

	service.publishStatus(ctx, o, "", "")
	service.logger.Info(ctx, "order_created", "Order created", map[string]any{
		"order_id": o.ID, "order_number": o.Number, "total": o.Total,
	})
	return o, nil
}

// AssignOrder hands a pending order to a driver. The row lock serializes
// racing assignments; the loser gets a conflict, never a silent overwrite.
func (service *dispatchService) AssignOrder(ctx context.Context, in ports.AssignOrderInput) (*order.Order, error) {
	var o *order.Order
	var prev order.Status

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = service.orders.GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}

		prev = o.Status
		if err := o.Assign(in.DriverID); err != nil {
			switch {
			case errors.Is(err, order.ErrAlreadyAssigned):
				return protocol.Conflictf("order %s is already assigned", in.OrderID).Wrap(err)
			case errors.Is(err, order.ErrInvalidTransition):
				return protocol.Conflictf("order %s is not assignable from %s", in.OrderID, prev).Wrap(err)
			case errors.Is(err, order.ErrDriverRequired):
				return protocol.Validationf("driver_id is required").Wrap(err)
			default:
				return err
			}
		}

		// lock the presence row and flip it to ORDER_ACTIVE in the same
		// transaction; otherwise two racing assignments both see a free
		// driver while the status message is still in the queue
		p, err := service.presence.GetForUpdate(ctx, in.DriverID)
		if err != nil {
			return err
		}
		if p == nil {
			return protocol.Conflictf("driver %s is not available for assignment", in.DriverID).
				Wrap(presence.ErrNotDispatchable)
		}
		if err := p.BeginOrder(); err != nil {
			return protocol.Conflictf("driver %s is not available for assignment", in.DriverID).Wrap(err)
		}
		if err := service.presence.Upsert(ctx, p); err != nil {
			return err
		}

		return service.orders.Save(ctx, o)
	})
	if err != nil {
		service.logger.Error(ctx, "order_assign_failed", "Failed to assign order", err,
			map[string]any{"order_id": in.OrderID, "driver_id": in.DriverID, "admin_id": in.AdminID})
		return nil, err
	}

	service.publishStatus(ctx, o, prev, in.DriverID)
	service.logger.Info(ctx, "order_assigned", "Order assigned to driver", map[string]any{
		"order_id": o.ID, "driver_id": in.DriverID, "admin_id": in.AdminID,
	})
	return o, nil
}

// Classify tags a pending order SPAMMED or TEST instead of dispatching it.
func (service *dispatchService) Classify(ctx context.Context, orderID string, target order.Status, adminID string) (*order.Order, error) {
	var o *order.Order
	var prev order.Status

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = service.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		prev = o.Status
		// replayed classification with the same tag is a no-op success
		if o.Status == target {
			return nil
		}
		if err := o.Classify(target); err != nil {
			switch {
			case errors.Is(err, order.ErrInvalidStatus):
				return protocol.Validationf("classification must be SPAMMED or TEST").Wrap(err)
			case errors.Is(err, order.ErrNotClassifiable):
				return protocol.Conflictf("order %s is %s, only pending orders can be classified", orderID, prev).Wrap(err)
			default:
				return err
			}
		}
		return service.orders.Save(ctx, o)
	})
	if err != nil {
		service.logger.Error(ctx, "order_classify_failed", "Failed to classify order", err,
			map[string]any{"order_id": orderID, "target": target.String(), "admin_id": adminID})
		return nil, err
	}

	if prev != o.Status {
		service.publishStatus(ctx, o, prev, "")
	}
	service.logger.Info(ctx, "order_classified", "Order classified", map[string]any{
		"order_id": o.ID, "status": o.Status.String(), "admin_id": adminID,
	})
	return o, nil
}

// GetOrder fetches one order.
func (service *dispatchService) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var o *order.Order
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = service.orders.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListBucket returns a status bucket's newest orders plus its unseen count.
func (service *dispatchService) ListBucket(ctx context.Context, status order.Status, limit int) (*ports.BucketView, error) {
	if !status.Valid() {
		return nil, protocol.Validationf("unknown order bucket %q", status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	view := &ports.BucketView{Status: status}
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if view.Orders, err = service.orders.ListByStatus(ctx, status, limit); err != nil {
			return err
		}
		view.Unseen, err = service.orders.CountUnseen(ctx, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// MarkBucketSeen clears the unread badge for a bucket and reports how many
// orders it covered.
func (service *dispatchService) MarkBucketSeen(ctx context.Context, status order.Status) (int, error) {
	if !status.Valid() {
		return 0, protocol.Validationf("unknown order bucket %q", status)
	}

	var n int
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = service.orders.MarkBucketSeen(ctx, status)
		return err
	})
	if err != nil {
		return 0, err
	}

	service.logger.Info(ctx, "bucket_marked_seen", "Order bucket marked seen", map[string]any{
		"bucket": status.String(), "orders": n,
	})
	return n, nil
}
