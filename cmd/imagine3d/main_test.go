package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/imagine3d/audit"
	"github.com/BaSui01/imagine3d/config"
)

func TestInitLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := initLogger(config.LogConfig{Level: tt.level, Format: "json", OutputPaths: []string{"stderr"}})
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestInitLogger_ConsoleAndDefaults(t *testing.T) {
	assert.NotNil(t, initLogger(config.LogConfig{Level: "info", Format: "console"}))
	assert.NotNil(t, initLogger(config.LogConfig{}))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  http_port: 18080
pipeline:
  output_dir: ` + filepath.Join(dir, "out") + `
  users:
    alice:
      app_ids: ["img", "mdl"]
database:
  driver: sqlite
  name: ` + filepath.Join(dir, "audit.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 18080, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"img", "mdl"}, cfg.Pipeline.Users["alice"].AppIDs)
	assert.Equal(t, config.DefaultCaller, cfg.Pipeline.DefaultCaller)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o600))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "猫猫猫猫猫猫猫...", truncate(strings.Repeat("猫", 20), 10))
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	err := printRecords(&buf, []audit.GenerationRecord{{
		ID:             3,
		Timestamp:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		OriginalPrompt: "a cat",
		ImagePath:      "generated_outputs/generated_image_20261019_120000.png",
		Model3DPath:    "Skipped: No image generated.",
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "2026-10-19 12:00:00")
	assert.Contains(t, out, "Skipped: No image generated.")
}
