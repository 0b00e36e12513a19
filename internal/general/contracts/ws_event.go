package contracts

import (
	"encoding/json"
	"time"

	"courier-dispatch/internal/domain/chat"
	"courier-dispatch/internal/domain/order"
)

// Socket frame types. Every intent carries a correlation_id; the matching ack
// or error frame echoes it, so clients never rely on global event ordering to
// pair a response with its request.
const (
	// client -> server
	EventAuth                  = "auth"
	EventToggleAvailability    = "toggle_availability"
	EventLocationUpdate        = "location_update"
	EventWatchOrders           = "watch_orders"
	EventWatchDrivers          = "watch_drivers"
	EventWatchClients          = "watch_clients"
	EventOrderDelivered        = "order_delivered"
	EventOrderCancelled        = "order_cancelled"
	EventOrderRedistributed    = "order_redistributed"
	EventChatInit              = "chat_init"
	EventChatJoin              = "chat_join"
	EventChatSend              = "chat_send"
	EventChatMarkSeen          = "chat_mark_seen"
	EventNotificationsFetch    = "notifications_fetch"
	EventNotificationsMarkRead = "notifications_mark_read"

	// server -> client
	EventAck              = "ack"
	EventError            = "error"
	EventOrderUpdate      = "order_update"
	EventPresenceUpdate   = "presence_update"
	EventActivationStatus = "activation_status"
	EventChatMessage      = "chat_message"
	EventChatHistory      = "chat_history"
	EventNotificationNew  = "notification_new"
	EventNotificationsAll = "notifications_all"
	EventClientUpdate     = "client_update"
	EventSystemStatus     = "system_status"
)

// WSFrame is the envelope both directions share on the socket.
type WSFrame struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// WSError is sent only to the initiating session, echoing its correlation id.
type WSError struct {
	Code    string `json:"code"` // validation|conflict|not_found|internal
	Message string `json:"message"`
}

// ----- intent payloads (client -> server) -----

type WSToggleAvailability struct {
	Available bool `json:"available"`
}

type WSLocationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy_meters,omitempty"`
}

type WSWatchOrders struct {
	Bucket string `json:"bucket"` // one of the order statuses
}

type WSOrderAction struct {
	OrderID string `json:"order_id"`
	Comment string `json:"comment,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type WSChatInit struct {
	Kind string `json:"kind"` // support|order
	Key  string `json:"key"`  // user id for support, order id for order chat
}

type WSChatSend struct {
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

type WSChatMarkSeen struct {
	ChatID string `json:"chat_id"`
}

// ----- broadcast payloads (server -> client) -----

// WSOrderUpdate mirrors a committed order transition to every session
// watching the affected bucket, plus the assigned driver's session.
type WSOrderUpdate struct {
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	Status      string           `json:"status"`
	PrevStatus  string           `json:"prev_status"`
	DriverID    string           `json:"driver_id,omitempty"`
	Items       []order.LineItem `json:"items,omitempty"`
	Total       float64          `json:"total"`
	Timestamp   time.Time        `json:"timestamp"`
}

// WSPresenceUpdate mirrors a driver presence delta to admin watchers and to
// the driver's own session.
type WSPresenceUpdate struct {
	DriverID  string    `json:"driver_id"`
	State     string    `json:"state"`
	Location  *GeoPoint `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WSActivationStatus reconciles the driver's availability toggle after a
// server-side decision (ack of a legal toggle, or revert of an illegal one).
type WSActivationStatus struct {
	Available bool   `json:"available"`
	Locked    bool   `json:"locked"` // true while an order is active
	Reverted  bool   `json:"reverted,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// WSChatMessage delivers one appended message to thread subscribers.
type WSChatMessage struct {
	ChatID  string       `json:"chat_id"`
	Message chat.Message `json:"message"`
}

// WSChatHistory answers chat_init/chat_join with thread context: the unseen
// suffix for a resumed support chat, or the full log for a joining observer.
type WSChatHistory struct {
	ChatID   string         `json:"chat_id"`
	Kind     string         `json:"kind"`
	Key      string         `json:"key"`
	Messages []chat.Message `json:"messages"`
	Full     bool           `json:"full"`
}

// WSNotification delivers an admin broadcast to an online recipient.
type WSNotification struct {
	NotificationID string    `json:"notification_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
}

// WSNotificationsMarkRead flips the read flag on the caller's own delivery.
type WSNotificationsMarkRead struct {
	NotificationID string `json:"notification_id"`
}

// WSClientUpdate tells admin watchers that a client session came or went.
type WSClientUpdate struct {
	ClientID  string    `json:"client_id"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// WSSystemStatus announces a system on/off flip to every session.
type WSSystemStatus struct {
	Scope     string    `json:"scope"`
	Enabled   bool      `json:"enabled"`
	Timestamp time.Time `json:"timestamp"`
}
