package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmitsThroughEncoder(t *testing.T) {
	l := New("")
	ctx := l.WithRequestID(context.Background(), "req-1")

	// exercises the JSON encoder end to end, timestamp encoding included
	l.Debug(ctx, "encoder_check", "debug line", map[string]any{"k": "v"})
	l.Info(ctx, "encoder_check", "info line", nil)
	l.Error(ctx, "encoder_check", "error line", errors.New("boom"), nil)
	l.Sync()
}

func TestFieldsCarriesActionAndRequestID(t *testing.T) {
	l := New("gateway-test")
	ctx := l.WithRequestID(context.Background(), "req-42")

	fields := l.fields(ctx, "  ", map[string]any{"k": "v"})
	require.Len(t, fields, 3)
	assert.Equal(t, "action", fields[0].Key)
	assert.Equal(t, "unspecified", fields[0].String)
	assert.Equal(t, "request_id", fields[1].Key)
	assert.Equal(t, "req-42", fields[1].String)
	assert.Equal(t, "details", fields[2].Key)
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	l := New("gateway-test")
	ctx := context.Background()
	assert.Equal(t, ctx, l.WithRequestID(ctx, "   "))
}
