package jwt

import (
	"fmt"
	"testing"
	"time"

	"courier-dispatch/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	token, claims, err := mgr.IssueUserToken("user-1", "device-1", user.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)

	_, parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, user.RoleDriver, parsed.Role)
	assert.Equal(t, "device-1", parsed.DeviceID)
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	_, _, err := mgr.IssueUserToken("user-1", "d", user.Role("WIZARD"))
	assert.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour).IssueUserToken("user-1", "d", user.RoleClient)
	require.NoError(t, err)

	_, _, err = NewManager("secret-b", time.Hour).ParseAndValidate(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	mgr := NewManager("test-secret", -time.Minute)
	token, _, err := mgr.IssueUserToken("user-1", "d", user.RoleClient)
	require.NoError(t, err)

	_, _, err = mgr.ParseAndValidate(token)
	assert.Error(t, err)
}

func TestRoleAllowed(t *testing.T) {
	cl := &Claims{Role: user.RoleDriver}
	assert.NoError(t, RoleAllowed(cl, user.RoleDriver, user.RoleAdmin))
	assert.ErrorIs(t, RoleAllowed(cl, user.RoleAdmin), ErrRoleForbidden)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("driver-1", "device-1", user.RoleDriver)
	require.NoError(t, err)

	frame := fmt.Sprintf(`{"type":"auth","token":"Bearer %s","device_id":"device-9"}`, token)
	res, err := ValidateWSAuth([]byte(frame), mgr, user.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", res.Claims.Subject)
	// the frame's device id wins over the claim's
	assert.Equal(t, "device-9", res.DeviceID)
}

func TestValidateWSAuthFallsBackToClaimDevice(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("driver-1", "device-1", user.RoleDriver)
	require.NoError(t, err)

	frame := fmt.Sprintf(`{"type":"auth","token":"Bearer %s"}`, token)
	res, err := ValidateWSAuth([]byte(frame), mgr, user.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "device-1", res.DeviceID)
}

func TestValidateWSAuthRejections(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("client-1", "device-1", user.RoleClient)
	require.NoError(t, err)

	// not an auth frame
	_, err = ValidateWSAuth([]byte(`{"type":"chat_send"}`), mgr, user.RoleClient)
	assert.ErrorIs(t, err, ErrBadAuthMsg)

	// missing Bearer wrapper
	frame := fmt.Sprintf(`{"type":"auth","token":"%s","device_id":"d"}`, token)
	_, err = ValidateWSAuth([]byte(frame), mgr, user.RoleClient)
	assert.ErrorIs(t, err, ErrBadTokenWrap)

	// wrong role for the endpoint
	frame = fmt.Sprintf(`{"type":"auth","token":"Bearer %s","device_id":"d"}`, token)
	_, err = ValidateWSAuth([]byte(frame), mgr, user.RoleDriver)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	// garbage frame
	_, err = ValidateWSAuth([]byte(`{{`), mgr, user.RoleClient)
	assert.ErrorIs(t, err, ErrBadAuthMsg)
}
