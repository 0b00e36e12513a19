package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeFlag(t *testing.T) {
	mode, rest, err := ParseMode([]string{"--mode=gateway-service", "--max-concurrent=100"})
	require.NoError(t, err)
	assert.Equal(t, ModeGateway, mode)
	assert.Equal(t, []string{"--max-concurrent=100"}, rest)
}

func TestParseModeShorthand(t *testing.T) {
	for in, want := range map[string]string{
		"gateway":          ModeGateway,
		"gw":               ModeGateway,
		"dispatch":         ModeDispatch,
		"d":                ModeDispatch,
		"admin":            ModeAdmin,
		"a":                ModeAdmin,
		"dispatch-service": ModeDispatch,
	} {
		mode, _, err := ParseMode([]string{in})
		require.NoError(t, err, in)
		assert.Equal(t, want, mode, in)
	}
}

func TestParseModeMissing(t *testing.T) {
	_, _, err := ParseMode([]string{"--max-concurrent=10"})
	assert.Error(t, err)
}

func TestParseModeKeepsUnknownArgs(t *testing.T) {
	mode, rest, err := ParseMode([]string{"unknown-thing", "--mode=admin"})
	require.NoError(t, err)
	assert.Equal(t, ModeAdmin, mode)
	assert.Equal(t, []string{"unknown-thing"}, rest)
}
