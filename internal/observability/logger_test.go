// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/selharness/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -- Test Cases --

func TestNewLogger(t *testing.T) {
	t.Run("console format colorizes levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, zapcore.AddSync(&buf))

		logger.Info("This is a test message.")
		require.NoError(t, logger.Sync())

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService.")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
	})

	t.Run("json format carries structured fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}, zapcore.AddSync(&buf))

		logger.Warn("This is a JSON message.", zap.String("key", "value"))
		require.NoError(t, logger.Sync())

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "This is a JSON message.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("level filters lower entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "error", Format: "json"}, zapcore.AddSync(&buf))
		logger.Info("dropped")
		assert.Empty(t, buf.String())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "verbose", Format: "json"}, zapcore.AddSync(&buf))
		logger.Debug("dropped")
		logger.Info("kept")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("writes to a log file if configured", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "harness.log")
		var console bytes.Buffer
		logger := NewLogger(config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: path,
			MaxSize: 1,
		}, zapcore.AddSync(&console))

		logger.Error("This should go to the file.")
		_ = logger.Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
		assert.Contains(t, console.String(), "This should go to the file.")
	})
}

func TestInitialize(t *testing.T) {
	t.Run("only initializes once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, zapcore.AddSync(&buf))
		logger1 := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&buf))
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("returns a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("returns the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, zapcore.AddSync(&buf))
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
