package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("console logger to stderr", func(t *testing.T) {
		l, err := New(DefaultConfig())
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("json logger to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.log")
		l, err := New(&Config{Level: "debug", Format: "json", Output: path})
		require.NoError(t, err)

		l.Info("budget applied")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"budget applied"`)
	})

	t.Run("unwritable file is an error", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
		assert.Error(t, err)
	})
}

func TestConfigForEnvironment(t *testing.T) {
	assert.Equal(t, "json", ConfigForEnvironment("production").Format)
	assert.Equal(t, "console", ConfigForEnvironment("development").Format)
	assert.Equal(t, "console", ConfigForEnvironment("").Format)

	l, err := New(ConfigForEnvironment("production"))
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
