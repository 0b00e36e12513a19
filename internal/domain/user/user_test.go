package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHashesPassword(t *testing.T) {
	u, err := New("admin", "s3cret", RoleAdmin)
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.True(t, u.CheckPassword("s3cret"))
	assert.False(t, u.CheckPassword("wrong"))
	assert.True(t, u.Active)
}

func TestNewValidation(t *testing.T) {
	_, err := New("  ", "pw", RoleAdmin)
	assert.ErrorIs(t, err, ErrUsernameRequired)

	_, err = New("admin", "", RoleAdmin)
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = New("admin", "pw", Role("SUPERUSER"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" driver ")
	require.NoError(t, err)
	assert.Equal(t, RoleDriver, r)

	_, err = ParseRole("nobody")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
