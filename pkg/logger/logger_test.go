package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/pdfvision/internal/config"
)

func TestNewUsesConfiguredLevel(t *testing.T) {
	log, err := New(config.LogConfig{Level: "warn"}, false)
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewDebugOverridesLevel(t *testing.T) {
	log, err := New(config.LogConfig{Level: "error", Development: true}, true)
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestGetBeforeInitIsNop(t *testing.T) {
	if globalLogger != nil {
		t.Skip("global logger already initialized")
	}
	assert.NotNil(t, Get())
	assert.NoError(t, Sync())
}
