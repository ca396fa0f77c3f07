package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			SetLevel(tt.level)
			assert.Equal(t, tt.want, zapLevel.Level())
		})
	}
}

func TestSetOutput(t *testing.T) {
	orig := Default
	defer func() { Default = orig }()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	Infof("processed %d pages", 3)
	Debugf("hidden")
	With("request_id", "abc").Infof("tagged")

	out := buf.String()
	assert.Contains(t, out, "processed 3 pages")
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "request_id") && strings.Contains(out, "abc"))
}
