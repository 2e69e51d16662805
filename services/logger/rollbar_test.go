package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/somesha/core"
)

func TestLogger_Fields(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	logger := NewLogger(zap.New(obs), "API", core.NewTestConfig())

	person := core.Person{ID: "u-1", Username: "alice", Email: "alice@example.com"}
	logger.Error("grading failed", errors.New("boom"), map[string]interface{}{"quiz": "q-1"}, person)
	logger.Info("started")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, zapcore.ErrorLevel, first.Level)
	assert.Equal(t, "API", first.LoggerName)
	assert.Equal(t, "grading failed", first.Message)
	fields := first.ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "q-1", fields["quiz"])
	assert.Equal(t, "u-1", fields["user_id"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Empty(t, entries[1].ContextMap())
}

func TestLogger_RollbarDisabledInTests(t *testing.T) {
	conf := core.NewTestConfig()
	conf.RollbarToken = "token"
	logger := NewLogger(zap.NewNop(), "DB", conf)
	assert.False(t, logger.rollbar)
}
