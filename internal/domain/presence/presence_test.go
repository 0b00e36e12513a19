package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connected(t *testing.T) *DriverPresence {
	t.Helper()
	p, err := New("driver-1")
	require.NoError(t, err)
	p.Connect("device-1")
	return p
}

func TestConnectAlwaysLandsUnavailable(t *testing.T) {
	p := connected(t)
	require.NoError(t, p.Toggle(true))
	p.Disconnect()

	// the preference survived, but a reconnect never auto-restores it
	p.Connect("device-2")
	assert.Equal(t, StateUnavailable, p.State)
	assert.True(t, p.AvailablePref)
	assert.Equal(t, "device-2", p.DeviceID)
}

func TestToggle(t *testing.T) {
	p := connected(t)

	require.NoError(t, p.Toggle(true))
	assert.Equal(t, StateAvailable, p.State)

	require.NoError(t, p.Toggle(false))
	assert.Equal(t, StateUnavailable, p.State)
	assert.False(t, p.AvailablePref)
}

func TestToggleLockedDuringOrder(t *testing.T) {
	p := connected(t)
	require.NoError(t, p.Toggle(true))
	require.NoError(t, p.BeginOrder())

	err := p.Toggle(false)
	assert.ErrorIs(t, err, ErrToggleLocked)
	// the rejected toggle changed nothing
	assert.Equal(t, StateOrderActive, p.State)
	assert.True(t, p.AvailablePref)
}

func TestToggleOffline(t *testing.T) {
	p, err := New("driver-1")
	require.NoError(t, err)
	assert.ErrorIs(t, p.Toggle(true), ErrNotConnected)
}

func TestBeginOrderRequiresDispatchable(t *testing.T) {
	p := connected(t)
	assert.ErrorIs(t, p.BeginOrder(), ErrNotDispatchable)
}

func TestEndOrderRevertsToPreference(t *testing.T) {
	p := connected(t)
	require.NoError(t, p.Toggle(true))
	require.NoError(t, p.BeginOrder())

	require.NoError(t, p.EndOrder())
	assert.Equal(t, StateAvailable, p.State)
}

func TestEndOrderRevertsToUnavailableWhenPrefOff(t *testing.T) {
	p := connected(t)
	require.NoError(t, p.Toggle(true))
	require.NoError(t, p.BeginOrder())

	// preference flipped off while locked is impossible; simulate a driver
	// whose stored preference was off at assignment time
	p.AvailablePref = false
	require.NoError(t, p.EndOrder())
	assert.Equal(t, StateUnavailable, p.State)
}

func TestEndOrderWithoutActiveOrder(t *testing.T) {
	p := connected(t)
	assert.ErrorIs(t, p.EndOrder(), ErrNoActiveOrder)
}

func TestDisconnectClearsLocation(t *testing.T) {
	p := connected(t)
	require.NoError(t, p.UpdateLocation(41.31, 69.24, 10, time.Now()))
	require.NotNil(t, p.Location)

	p.Disconnect()
	assert.Equal(t, StateOffline, p.State)
	assert.Nil(t, p.Location)
}

func TestUpdateLocationValidation(t *testing.T) {
	p := connected(t)

	assert.ErrorIs(t, p.UpdateLocation(91, 0, 0, time.Now()), ErrInvalidLatitude)
	assert.ErrorIs(t, p.UpdateLocation(0, -181, 0, time.Now()), ErrInvalidLongitude)

	require.NoError(t, p.UpdateLocation(41.31, 69.24, 5, time.Now()))
	assert.Equal(t, 41.31, p.Location.Latitude)
}

func TestUpdateLocationOffline(t *testing.T) {
	p, err := New("driver-1")
	require.NoError(t, err)
	assert.ErrorIs(t, p.UpdateLocation(1, 1, 0, time.Now()), ErrNotConnected)
}

func TestStateHelpers(t *testing.T) {
	assert.False(t, StateOffline.Online())
	assert.True(t, StateUnavailable.Online())
	assert.True(t, StateOrderActive.Online())

	assert.True(t, StateAvailable.Dispatchable())
	assert.False(t, StateOrderActive.Dispatchable())

	s, err := ParseState(" available ")
	require.NoError(t, err)
	assert.Equal(t, StateAvailable, s)

	_, err = ParseState("busy")
	assert.ErrorIs(t, err, ErrInvalidState)
}
