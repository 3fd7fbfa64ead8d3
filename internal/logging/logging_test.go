package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/example/intake/internal/config"
)

func TestNew(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestRef(t *testing.T) {
	f := Ref("HLX-1-A")
	assert.Equal(t, "instruction_ref", f.Key)
	assert.Equal(t, "HLX-1-A", f.String)
}
