package service

import (
	"context"
	"strings"
	"time"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/ports"
)

// Overview builds the dashboard summary: live bucket counts, today's
// delivered/cancelled totals and revenue from postgres, and the online/ready
// driver counts from the presence snapshots.
func (service *adminService) Overview(ctx context.Context, now time.Time) (*ports.OverviewMetrics, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	m := &ports.OverviewMetrics{}
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if m.PendingCount, err = service.orders.CountByStatusBetween(ctx, order.StatusPending, time.Time{}, dayEnd); err != nil {
			return err
		}
		if m.InProgressCount, err = service.orders.CountByStatusBetween(ctx, order.StatusInProgress, time.Time{}, dayEnd); err != nil {
			return err
		}
		if m.DeliveredToday, err = service.orders.CountByStatusBetween(ctx, order.StatusDelivered, dayStart, dayEnd); err != nil {
			return err
		}
		if m.CancelledToday, err = service.orders.CountByStatusBetween(ctx, order.StatusCancelled, dayStart, dayEnd); err != nil {
			return err
		}
		m.RevenueToday, err = service.orders.SumDeliveredTotalBetween(ctx, dayStart, dayEnd)
		return err
	})
	if err != nil {
		return nil, err
	}

	drivers, err := service.cache.ListDriverPresence(ctx)
	if err != nil {
		// The dashboard stays useful without the driver counts.
		service.logger.Error(ctx, "overview_presence_failed", "Failed to list presence snapshots", err, nil)
		return m, nil
	}
	for _, p := range drivers {
		if !p.State.Online() {
			continue
		}
		m.DriversOnline++
		if p.State.Dispatchable() {
			m.DriversReady++
		}
	}
	return m, nil
}

// SetSystemFlag flips a runtime flag and announces the change to every
// connected session.
func (service *adminService) SetSystemFlag(ctx context.Context, name string, enabled bool, adminID string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "system", "drivers", "clients":
	default:
		return protocol.Validationf("unknown system flag %q", name)
	}

	if err := service.cache.SetSystemFlag(ctx, name, enabled); err != nil {
		return err
	}

	msg := contracts.SystemStatusMessage{
		Scope:     name,
		Enabled:   enabled,
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: contracts.NewCorrelationID(),
			Producer:      "admin-service",
			SentAt:        time.Now().UTC(),
		},
	}
	if err := service.pub.Publish(ctx, contracts.ExchangeNotifyFanout, contracts.RouteSystemStatus, msg); err != nil {
		service.logger.Error(ctx, "system_flag_publish_failed", "Failed to publish system status", err,
			map[string]any{"flag": name, "enabled": enabled})
	}

	service.logger.Info(ctx, "system_flag_set", "System flag updated", map[string]any{
		"flag": name, "enabled": enabled, "admin_id": adminID,
	})
	return nil
}

// SystemFlags returns the current flag hash.
func (service *adminService) SystemFlags(ctx context.Context) (map[string]bool, error) {
	return service.cache.SystemFlags(ctx)
}
