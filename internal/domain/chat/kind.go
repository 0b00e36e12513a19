package chat

import (
	"errors"
	"strings"
)

// Kind distinguishes the two chat domains sharing this mechanism: support
// threads keyed by the client or driver talking to the back office, and
// order threads keyed by the order they belong to.
type Kind string

const (
	KindSupport Kind = "SUPPORT"
	KindOrder   Kind = "ORDER"
)

var ErrInvalidKind = errors.New("invalid chat kind")

// ParseKind normalizes (uppercases+trims) and validates a kind string.
func ParseKind(in string) (Kind, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(in)))
	if kind.Valid() {
		return kind, nil
	}
	return "", ErrInvalidKind
}

// Valid reports whether kind is one of the allowed kind constants.
func (kind Kind) Valid() bool {
	return kind == KindSupport || kind == KindOrder
}

// String returns the string representation of the Kind.
func (kind Kind) String() string {
	return string(kind)
}
