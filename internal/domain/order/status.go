package order

import (
	"errors"
	"strings"
)

// Status is an order status as stored in the `order_status` table.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusSpammed    Status = "SPAMMED"
	StatusTest       Status = "TEST"
)

var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed order status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusInProgress, StatusDelivered, StatusCancelled, StatusSpammed, StatusTest:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// SPAMMED and TEST are administrative classifications applied to pending
// orders instead of dispatching them; they never follow IN_PROGRESS.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusPending:
		return next == StatusInProgress || next == StatusSpammed || next == StatusTest

	case StatusInProgress:
		// back to PENDING is a redistribution (re-queue for assignment)
		return next == StatusDelivered || next == StatusCancelled || next == StatusPending

	case StatusDelivered, StatusCancelled, StatusSpammed, StatusTest:
		return false

	default:
		return false
	}
}

// Terminal indicates that no further transition may leave this status.
func (status Status) Terminal() bool {
	switch status {
	case StatusDelivered, StatusCancelled, StatusSpammed, StatusTest:
		return true
	default:
		return false
	}
}
