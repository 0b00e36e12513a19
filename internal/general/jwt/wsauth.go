package jwt

import (
	"encoding/json"
	"errors"
	"strings"

	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
)

var (
	ErrBadAuthMsg   = errors.New("invalid auth message")
	ErrBadTokenWrap = errors.New("token must be 'Bearer <token>'")
)

// ClientAuthMessage is what clients send first over WS:
// { "type":"auth", "token":"Bearer <jwt>", "device_id":"..." }
type ClientAuthMessage struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

// Result carries the validated auth outcome for the socket handshake.
type Result struct {
	Claims   *Claims
	DeviceID string
	Raw      string
}

// ValidateWSAuth parses the first auth frame, validates the JWT, and enforces
// RBAC. The device id in the frame overrides the claim's, letting one account
// authenticate from a fresh device.
func ValidateWSAuth(frame []byte, mgr *Manager, allowedRoles ...user.Role) (*Result, error) {
	var msg ClientAuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, ErrBadAuthMsg
	}

	if strings.ToLower(strings.TrimSpace(msg.Type)) != contracts.EventAuth {
		return nil, ErrBadAuthMsg
	}

	// expect "Bearer <token>" wrapping
	parts := strings.SplitN(msg.Token, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrBadTokenWrap
	}

	raw := strings.TrimSpace(parts[1])
	_, claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	if err := RoleAllowed(claims, allowedRoles...); err != nil {
		return nil, err
	}

	deviceID := strings.TrimSpace(msg.DeviceID)
	if deviceID == "" {
		deviceID = claims.DeviceID
	}
	if deviceID == "" {
		return nil, ErrBadAuthMsg
	}

	return &Result{Claims: claims, DeviceID: deviceID, Raw: raw}, nil
}
