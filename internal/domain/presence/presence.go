package presence

import (
	"errors"
	"time"
)

// Location is the last reported driver position. No history is kept here;
// each sample overwrites the previous one.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy_meters,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DriverPresence is the per-driver availability record. The server is its
// sole mutator; clients only emit intents against it.
type DriverPresence struct {
	DriverID string
	DeviceID string
	State    State
	// AvailablePref is the last explicit toggle. It survives disconnects and
	// order assignments so the state can revert to it afterwards.
	AvailablePref bool
	Location      *Location
	LastSeenAt    time.Time
	UpdatedAt     time.Time
}

var (
	ErrDriverIDRequired = errors.New("driver id is required")
	ErrToggleLocked     = errors.New("availability toggle is locked while an order is active")
	ErrNotConnected     = errors.New("driver is not connected")
	ErrNotDispatchable  = errors.New("driver is not available for assignment")
	ErrNoActiveOrder    = errors.New("driver has no active order")
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// New creates presence for a driver that has never connected.
func New(driverID string) (*DriverPresence, error) {
	if driverID == "" {
		return nil, ErrDriverIDRequired
	}
	now := time.Now().UTC()
	return &DriverPresence{
		DriverID:  driverID,
		State:     StateOffline,
		UpdatedAt: now,
	}, nil
}

// Connect moves the driver online. The state lands on UNAVAILABLE regardless
// of the retained preference; the preference only drives the toggle shown to
// the driver and the post-order reversion.
func (p *DriverPresence) Connect(deviceID string) {
	p.DeviceID = deviceID
	p.State = StateUnavailable
	p.touch()
}

// Disconnect drops the driver to OFFLINE and clears the location. The last
// explicit toggle preference is retained for the next connect.
func (p *DriverPresence) Disconnect() {
	p.State = StateOffline
	p.Location = nil
	p.touch()
}

// Toggle flips availability. Illegal while an order is active or offline;
// the caller surfaces the rejection to the driver's own session so the UI
// toggle can revert.
func (p *DriverPresence) Toggle(available bool) error {
	switch p.State {
	case StateOrderActive:
		return ErrToggleLocked
	case StateOffline:
		return ErrNotConnected
	}

	p.AvailablePref = available
	if available {
		p.State = StateAvailable
	} else {
		p.State = StateUnavailable
	}
	p.touch()
	return nil
}

// BeginOrder locks the driver onto an order. Only a dispatchable driver can
// be assigned; dispatch surfaces the failure as an assignment conflict.
func (p *DriverPresence) BeginOrder() error {
	if !p.State.Dispatchable() {
		return ErrNotDispatchable
	}
	p.State = StateOrderActive
	p.touch()
	return nil
}

// EndOrder releases the order lock and reverts to the last explicit toggle.
func (p *DriverPresence) EndOrder() error {
	if p.State != StateOrderActive {
		return ErrNoActiveOrder
	}
	if p.AvailablePref {
		p.State = StateAvailable
	} else {
		p.State = StateUnavailable
	}
	p.touch()
	return nil
}

// UpdateLocation overwrites the last known position.
func (p *DriverPresence) UpdateLocation(lat, lng, accuracy float64, at time.Time) error {
	if p.State == StateOffline {
		return ErrNotConnected
	}
	if lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	if lng < -180 || lng > 180 {
		return ErrInvalidLongitude
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.Location = &Location{Latitude: lat, Longitude: lng, Accuracy: accuracy, Timestamp: at}
	p.touch()
	return nil
}

func (p *DriverPresence) touch() {
	now := time.Now().UTC()
	p.LastSeenAt = now
	p.UpdatedAt = now
}
