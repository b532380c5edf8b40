package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/calvinmclean/dispenser/firmware/controller"
)

func TestNewDefaultLogger(t *testing.T) {
	var l controller.Logger = NewDefaultLogger(false)
	assert.NotNil(t, l)

	assert.False(t, NewDefaultLogger(false).Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, NewDefaultLogger(true).Desugar().Core().Enabled(zapcore.DebugLevel))
}
