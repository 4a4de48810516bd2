package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config uses defaults", config: nil},
		{name: "explicit debug level", config: &Config{Level: LevelDebug, Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			assert.NotNil(t, logger)
		})
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	connLogger := logger.With("conn", "abc123")
	connLogger.Info("accepted")
	assert.Contains(t, buf.String(), "conn=abc123")
	assert.Contains(t, buf.String(), "accepted")

	buf.Reset()
	addrLogger := connLogger.With("addr", "127.0.0.1:5555")
	addrLogger.Debug("read bytes", "n", 12)
	out := buf.String()
	assert.Contains(t, out, "conn=abc123")
	assert.Contains(t, out, "addr=127.0.0.1:5555")
	assert.Contains(t, out, "n=12")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	errLogger := logger.WithError(errors.New("boom"))
	errLogger.Error("operation failed")
	assert.Contains(t, buf.String(), "boom")

	// A nil error must not introduce an err= field.
	buf.Reset()
	logger.WithError(nil).Error("still fine")
	assert.NotContains(t, buf.String(), "err=")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("also should not appear")
	assert.Empty(t, buf.String())

	logger.Warn("this appears")
	assert.Contains(t, buf.String(), "this appears")
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	Info("info message")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	Warn("warning message")
	assert.Contains(t, buf.String(), "warning message")

	buf.Reset()
	Error("error message")
	assert.Contains(t, buf.String(), "error message")
}
