package contracts

import (
	"time"

	"courier-dispatch/internal/domain/order"
)

// OrderIntentMessage is a driver action forwarded by the gateway.
// Routing key: "order.intent.{action}" on ExchangeOrderTopic.
type OrderIntentMessage struct {
	Action   string `json:"action"` // deliver|cancel|redistribute
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id"`
	DeviceID string `json:"device_id"` // session identity for the ack frame
	Comment  string `json:"comment,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Envelope
}

// OrderStatusMessage is published by the dispatch service after a committed
// transition. Routing key: "order.status.{status}" on ExchangeOrderTopic.
type OrderStatusMessage struct {
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	Status      string           `json:"status"`
	PrevStatus  string           `json:"prev_status"`
	ClientID    string           `json:"client_id"`
	DriverID    string           `json:"driver_id,omitempty"`
	Items       []order.LineItem `json:"items,omitempty"` // price and is_free pass through untouched
	Total       float64          `json:"total"`
	Timestamp   time.Time        `json:"timestamp"`
	Envelope
}

// OrderIntentRejected reports a refused intent back to the gateway, which
// relays it to the initiating session only (never broadcast).
// Routing key: "order.status.rejected" on ExchangeOrderTopic.
type OrderIntentRejected struct {
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id"`
	DeviceID string `json:"device_id"`
	Code     string `json:"code"` // validation|conflict|not_found
	Message  string `json:"message"`
	Envelope
}
