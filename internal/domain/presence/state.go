package presence

import (
	"errors"
	"strings"
)

// State is a driver's connectivity/availability state as seen by dispatch.
type State string

const (
	StateOffline     State = "OFFLINE"
	StateUnavailable State = "UNAVAILABLE"
	StateAvailable   State = "AVAILABLE"
	StateOrderActive State = "ORDER_ACTIVE"
)

var ErrInvalidState = errors.New("invalid presence state")

// ParseState normalizes (uppercases+trims) and validates a state string.
func ParseState(in string) (State, error) {
	state := State(strings.ToUpper(strings.TrimSpace(in)))
	if state.Valid() {
		return state, nil
	}
	return "", ErrInvalidState
}

// Valid reports whether state is one of the allowed state constants.
func (state State) Valid() bool {
	switch state {
	case StateOffline, StateUnavailable, StateAvailable, StateOrderActive:
		return true
	default:
		return false
	}
}

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}

// Online reports whether the driver has a live session.
func (state State) Online() bool {
	return state != StateOffline
}

// Dispatchable reports whether dispatch may assign an order to this driver.
func (state State) Dispatchable() bool {
	return state == StateAvailable
}
