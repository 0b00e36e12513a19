package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validationf("bad input")))
	assert.Equal(t, KindConflict, KindOf(Conflictf("lost the race")))
	assert.Equal(t, KindNotFound, KindOf(NotFoundf("no such thing")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	inner := Conflictf("stale")
	outer := fmt.Errorf("apply intent: %w", inner)
	assert.Equal(t, KindConflict, KindOf(outer))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Conflictf("toggle rejected").Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "toggle rejected")
	assert.Contains(t, err.Error(), "row locked")
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 400, StatusCode(Validationf("x")))
	assert.Equal(t, 404, StatusCode(NotFoundf("x")))
	assert.Equal(t, 409, StatusCode(Conflictf("x")))
	assert.Equal(t, 500, StatusCode(errors.New("boom")))
}
