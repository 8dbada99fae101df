package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFromCore(core)

	log.Info("purchase state", map[string]any{
		"state":      "submitted",
		"attempt_id": "a1",
		"error":      errors.New("boom"),
	})
	log.Debug("debug", nil)

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "purchase state", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	ctx := entry.ContextMap()
	assert.Equal(t, "submitted", ctx["state"])
	assert.Equal(t, "a1", ctx["attempt_id"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := NewZapLogger("error", format)
		require.NoError(t, err)
		log.Error("ok", nil)
	}
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))
	core, _ := observer.New(zapcore.InfoLevel)
	zl := NewZapLoggerFromCore(core)
	assert.Same(t, zl, OrNoop(zl))
}
