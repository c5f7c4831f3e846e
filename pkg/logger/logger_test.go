package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestInitWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "safecircle.log")
	require.NoError(t, Init(LogConfig{Level: "debug", Filename: file, MaxSize: 1}, "production"))
	Info("engine started")
	Sync()
	assert.True(t, Lg.Core().Enabled(zapcore.DebugLevel))

	SetLevel("error")
	assert.False(t, Lg.Core().Enabled(zapcore.WarnLevel))
}
