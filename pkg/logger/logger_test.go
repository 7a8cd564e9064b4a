package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lms_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		level, mode string
		want        zapcore.Level
	}{
		{"", "debug", zap.DebugLevel},
		{"", "release", zap.InfoLevel},
		{"WARN", "debug", zap.WarnLevel},
		{"error", "release", zap.ErrorLevel},
		{"loud", "release", zap.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseLevel(tc.level, tc.mode), "%q/%q", tc.level, tc.mode)
	}
}

func TestNew_FileCarriesServiceFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "lms.log")
	log := New(config.LogConfig{File: file, Level: "info"}, "release")

	log.Named("sweeper").Info("session expired", zap.String("session_id", "s-1"))
	log.Debug("dropped")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, ServiceName, entry["service"])
	assert.Equal(t, "release", entry["mode"])
	assert.Equal(t, "sweeper", entry["logger"])
	assert.Equal(t, "s-1", entry["session_id"])
}

func TestNew_NoSinks(t *testing.T) {
	log := New(config.LogConfig{}, "debug")
	assert.False(t, log.Core().Enabled(zap.ErrorLevel))
}
