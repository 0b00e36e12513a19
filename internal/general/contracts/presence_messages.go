package contracts

import "time"

// PresenceMessage is published whenever a driver's presence state changes.
// Routing key: "presence.{driver_id}" on ExchangePresenceTopic.
type PresenceMessage struct {
	DriverID  string    `json:"driver_id"`
	State     string    `json:"state"` // OFFLINE|UNAVAILABLE|AVAILABLE|ORDER_ACTIVE
	OrderID   string    `json:"order_id,omitempty"`
	Location  *GeoPoint `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}

// NotificationMessage is fanned out to gateways for online recipients.
// Exchange: ExchangeNotifyFanout (fanout, no routing key).
type NotificationMessage struct {
	NotificationID string    `json:"notification_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Recipients     []string  `json:"recipients"`
	CreatedAt      time.Time `json:"created_at"`
	Envelope
}

// SystemStatusMessage announces system/driver-side/client-side availability
// flips. Exchange: ExchangeNotifyFanout (every session hears about it).
type SystemStatusMessage struct {
	Scope     string    `json:"scope"` // system|drivers|clients
	Enabled   bool      `json:"enabled"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
