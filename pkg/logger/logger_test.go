package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	_, err := newLogger(Config{Level: "verbose"})
	assert.Error(t, err)

	l, err := newLogger(Config{Level: "debug", Encoding: "console", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))

	ctx := WithValue(context.Background(), JobIDKey, "job-7")
	ctx = WithValue(ctx, InputKey, "hdfs://runs/cube.e")
	ctx = WithValue(ctx, AttemptKey, 2)
	WithContext(ctx).Info("converted")
	Info("plain")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "job-7", fields["job_id"])
	assert.Equal(t, "hdfs://runs/cube.e", fields["input"])
	assert.Equal(t, int64(2), fields["attempt"])
	assert.Empty(t, entries[1].ContextMap())
	assert.NoError(t, Sync())
}
