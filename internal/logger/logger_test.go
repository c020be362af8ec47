package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, testCase := range testCases {
		t.Run(testCase.level, func(t *testing.T) {
			l, err := New(testCase.level)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(testCase.want))
			if testCase.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(testCase.want-1))
			}
		})
	}
}

func TestNewUnknownLevel(t *testing.T) {
	_, err := New("verbose")
	assert.Error(t, err)
}
