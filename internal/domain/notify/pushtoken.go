package notify

import (
	"errors"
	"strings"
	"time"
)

// PushToken is a device push registration. One row per (userID, deviceID);
// re-registering with a new token overwrites the old one.
type PushToken struct {
	UserID    string
	DeviceID  string
	Token     string
	Platform  string // "ios" or "android"
	Active    bool
	UpdatedAt time.Time
}

var (
	ErrUserRequired   = errors.New("user id is required")
	ErrDeviceRequired = errors.New("device id is required")
	ErrTokenRequired  = errors.New("push token is required")
)

// NewPushToken validates and builds an active registration.
func NewPushToken(userID, deviceID, token, platform string) (*PushToken, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(deviceID) == "" {
		return nil, ErrDeviceRequired
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrTokenRequired
	}

	return &PushToken{
		UserID:    userID,
		DeviceID:  deviceID,
		Token:     strings.TrimSpace(token),
		Platform:  strings.ToLower(strings.TrimSpace(platform)),
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Stale reports whether the registration has gone unused long enough for the
// cleanup job to deactivate it.
func (t *PushToken) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(t.UpdatedAt) > maxAge
}
