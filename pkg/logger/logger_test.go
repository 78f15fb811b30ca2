package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "chatty", Encoding: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLogger_Console(t *testing.T) {
	l, err := newLogger(Config{Level: "debug", Encoding: "console", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestInit_ReplacesGlobal(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, Init(Config{Level: "info", OutputPaths: []string{first}}))
	Debug("hidden")
	Info("one")

	require.NoError(t, Init(Config{Level: "debug", OutputPaths: []string{second}}))
	Debug("two")
	require.NoError(t, Sync())

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"one"`)
	assert.NotContains(t, string(data), "hidden")

	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"two"`)
}

func TestFields(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithConnector(ctx, "memory")
	ctx = ContextWithOperation(ctx, "search")

	assert.Equal(t, []zap.Field{
		zap.String("request_id", "req-1"),
		zap.String("connector", "memory"),
		zap.String("operation", "search"),
	}, Fields(ctx))

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	assert.NotNil(t, WithContext(ctx))
}
