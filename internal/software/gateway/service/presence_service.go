package service

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/redis"
	"courier-dispatch/internal/ports"
)

// presenceService is the single mutator of driver presence. Every transition
// runs inside a transaction holding the driver's row lock, then refreshes the
// redis snapshot and publishes a presence delta.
type presenceService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	repo   ports.PresenceRepository
	cache  *redis.Client
	pub    ports.MessagePublisher
}

// NewPresenceService constructs the presence service.
func NewPresenceService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	repo ports.PresenceRepository,
	cache *redis.Client,
	pub ports.MessagePublisher,
) ports.PresenceService {
	return &presenceService{logger: log, uow: uow, repo: repo, cache: cache, pub: pub}
}

// Connect marks a driver connected. The state lands on UNAVAILABLE no matter
// what the last toggle was; availability is an explicit act per connection.
func (service *presenceService) Connect(ctx context.Context, driverID, deviceID string) (*presence.DriverPresence, error) {
	var p *presence.DriverPresence
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = service.repo.GetForUpdate(ctx, driverID)
		if err != nil {
			return err
		}
		if p == nil {
			if p, err = presence.New(driverID); err != nil {
				return err
			}
		}
		p.Connect(deviceID)
		return service.repo.Upsert(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	service.afterTransition(ctx, p, "")
	service.logger.Info(ctx, "driver_connected", "Driver presence registered", map[string]any{
		"driver_id": driverID, "device_id": deviceID, "state": p.State.String(),
	})
	return p, nil
}

// Disconnect marks a driver offline. The availability preference survives so
// the next order completion after a reconnect can still revert to it.
func (service *presenceService) Disconnect(ctx context.Context, driverID string) (*presence.DriverPresence, error) {
	var p *presence.DriverPresence
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = service.repo.GetForUpdate(ctx, driverID)
		if err != nil || p == nil {
			return err
		}
		p.Disconnect()
		return service.repo.Upsert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	if err := service.cache.RemoveDriverPresence(ctx, driverID); err != nil {
		service.logger.Error(ctx, "presence_cache_remove_failed", "Failed to drop presence snapshot", err,
			map[string]any{"driver_id": driverID})
	}
	service.publishPresence(ctx, p, "")

	service.logger.Info(ctx, "driver_disconnected", "Driver presence went offline", map[string]any{
		"driver_id": driverID,
	})
	return p, nil
}

// Toggle applies an explicit availability flip. While an order is active the
// toggle is locked; the unchanged record rides back with the conflict so the
// caller can reconcile the device's switch.
func (service *presenceService) Toggle(ctx context.Context, driverID string, available bool) (*presence.DriverPresence, error) {
	var p *presence.DriverPresence
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = service.repo.GetForUpdate(ctx, driverID)
		if err != nil {
			return err
		}
		if p == nil {
			return protocol.Conflictf("driver is not connected").Wrap(presence.ErrNotConnected)
		}
		if err := p.Toggle(available); err != nil {
			switch {
			case errors.Is(err, presence.ErrToggleLocked):
				return protocol.Conflictf("availability is locked while an order is active").Wrap(err)
			case errors.Is(err, presence.ErrNotConnected):
				return protocol.Conflictf("driver is not connected").Wrap(err)
			default:
				return err
			}
		}
		return service.repo.Upsert(ctx, p)
	})
	if err != nil {
		// p carries the unchanged record for reconciliation frames
		return p, err
	}

	service.afterTransition(ctx, p, "")
	service.logger.Info(ctx, "driver_toggled", "Driver availability toggled", map[string]any{
		"driver_id": driverID, "available": available, "state": p.State.String(),
	})
	return p, nil
}

// UpdateLocation overwrites the driver's last reported position.
func (service *presenceService) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) (*presence.DriverPresence, error) {
	var p *presence.DriverPresence
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = service.repo.GetForUpdate(ctx, driverID)
		if err != nil {
			return err
		}
		if p == nil {
			return protocol.Conflictf("driver is not connected").Wrap(presence.ErrNotConnected)
		}
		// simple rate limit: skip writes if the last update is < 3s ago
		if p.Location != nil && time.Since(p.Location.Timestamp) < 3*time.Second {
			return nil
		}
		if err := p.UpdateLocation(lat, lng, 0, time.Now().UTC()); err != nil {
			switch {
			case errors.Is(err, presence.ErrInvalidLatitude), errors.Is(err, presence.ErrInvalidLongitude):
				return protocol.Validationf("invalid coordinates").Wrap(err)
			case errors.Is(err, presence.ErrNotConnected):
				return protocol.Conflictf("driver is not connected").Wrap(err)
			default:
				return err
			}
		}
		return service.repo.Upsert(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	service.afterTransition(ctx, p, "")
	return p, nil
}

// BeginOrder locks the driver into ORDER_ACTIVE for a fresh assignment.
func (service *presenceService) BeginOrder(ctx context.Context, driverID string) (*presence.DriverPresence, error) {
	return service.bracketOrder(ctx, driverID, true)
}

// EndOrder releases the driver, reverting to the stored availability
// preference.
func (service *presenceService) EndOrder(ctx context.Context, driverID string) (*presence.DriverPresence, error) {
	return service.bracketOrder(ctx, driverID, false)
}

func (service *presenceService) bracketOrder(ctx context.Context, driverID string, begin bool) (*presence.DriverPresence, error) {
	var p *presence.DriverPresence
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = service.repo.GetForUpdate(ctx, driverID)
		if err != nil {
			return err
		}
		if p == nil {
			return protocol.Conflictf("driver %s has no presence record", driverID).Wrap(presence.ErrNotConnected)
		}
		if begin {
			// dispatch flips the row inside the assign transaction, so by
			// the time the status message lands here the state is usually
			// already ORDER_ACTIVE; the consumer pass is then only the
			// snapshot refresh and broadcast
			if p.State != presence.StateOrderActive {
				err = p.BeginOrder()
			}
		} else {
			err = p.EndOrder()
		}
		if err != nil {
			return protocol.Conflictf("presence transition rejected").Wrap(err)
		}
		return service.repo.Upsert(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	service.afterTransition(ctx, p, "")
	service.logger.Info(ctx, "driver_order_bracket", "Driver presence updated around assignment", map[string]any{
		"driver_id": driverID, "state": p.State.String(),
	})
	return p, nil
}

// Snapshot lists the live driver map from the cache.
func (service *presenceService) Snapshot(ctx context.Context) ([]*presence.DriverPresence, error) {
	return service.cache.ListDriverPresence(ctx)
}

// afterTransition refreshes the snapshot and publishes the delta. Both are
// best-effort; the transaction already committed.
func (service *presenceService) afterTransition(ctx context.Context, p *presence.DriverPresence, orderID string) {
	if err := service.cache.SetDriverPresence(ctx, p); err != nil {
		service.logger.Error(ctx, "presence_cache_set_failed", "Failed to refresh presence snapshot", err,
			map[string]any{"driver_id": p.DriverID})
	}
	service.publishPresence(ctx, p, orderID)
}

func (service *presenceService) publishPresence(ctx context.Context, p *presence.DriverPresence, orderID string) {
	msg := contracts.PresenceMessage{
		DriverID:  p.DriverID,
		State:     p.State.String(),
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: contracts.NewCorrelationID(),
			Producer:      "gateway-service",
			SentAt:        time.Now().UTC(),
		},
	}
	if p.Location != nil {
		msg.Location = &contracts.GeoPoint{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}

	if err := service.pub.Publish(ctx, contracts.ExchangePresenceTopic, contracts.RoutePresencePrefix+p.DriverID, msg); err != nil {
		service.logger.Error(ctx, "presence_publish_failed", "Failed to publish presence update", err,
			map[string]any{"driver_id": p.DriverID, "state": p.State.String()})
	}
}
