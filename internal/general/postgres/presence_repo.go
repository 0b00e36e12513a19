package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PresenceRepo persists the durable per-driver availability record. The hot
// read path (driver lists, dispatch checks) goes through the redis snapshot;
// this table is the source of truth that seeds it.
type PresenceRepo struct{}

// NewPresenceRepo constructs a new PresenceRepo.
func NewPresenceRepo() ports.PresenceRepository {
	return &PresenceRepo{}
}

// GetForUpdate fetches and locks a driver's presence row. Returns pgx.ErrNoRows
// wrapped as a nil record when the driver has never connected.
func (r *PresenceRepo) GetForUpdate(ctx context.Context, driverID string) (*presence.DriverPresence, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var p presence.DriverPresence
	var state string
	var lat, lng, accuracy *float64
	var locAt *time.Time

	err = tx.QueryRow(ctx, `
		SELECT driver_id, device_id, state, available_pref,
		       location_lat, location_lng, location_accuracy, location_at,
		       last_seen_at, updated_at
		FROM driver_presence
		WHERE driver_id = $1
		FOR UPDATE
	`, driverID).Scan(
		&p.DriverID, &p.DeviceID, &state, &p.AvailablePref,
		&lat, &lng, &accuracy, &locAt,
		&p.LastSeenAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query driver presence: %w", err)
	}

	p.State = presence.State(state)
	if lat != nil && lng != nil && locAt != nil {
		loc := presence.Location{Latitude: *lat, Longitude: *lng, Timestamp: *locAt}
		if accuracy != nil {
			loc.Accuracy = *accuracy
		}
		p.Location = &loc
	}
	return &p, nil
}

// Upsert writes the full presence record, inserting on first contact.
func (r *PresenceRepo) Upsert(ctx context.Context, p *presence.DriverPresence) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var lat, lng, accuracy *float64
	var locAt *time.Time
	if p.Location != nil {
		lat = &p.Location.Latitude
		lng = &p.Location.Longitude
		accuracy = &p.Location.Accuracy
		locAt = &p.Location.Timestamp
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_presence (
			driver_id, device_id, state, available_pref,
			location_lat, location_lng, location_accuracy, location_at,
			last_seen_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (driver_id) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			state = EXCLUDED.state,
			available_pref = EXCLUDED.available_pref,
			location_lat = EXCLUDED.location_lat,
			location_lng = EXCLUDED.location_lng,
			location_accuracy = EXCLUDED.location_accuracy,
			location_at = EXCLUDED.location_at,
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = EXCLUDED.updated_at
	`,
		p.DriverID, p.DeviceID, p.State.String(), p.AvailablePref,
		lat, lng, accuracy, locAt,
		p.LastSeenAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert driver presence: %w", err)
	}
	return nil
}
