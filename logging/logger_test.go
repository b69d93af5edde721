package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	level, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "xml"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewWritesRotatedFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warn"
	cfg.File = filepath.Join(t.TempDir(), "healthpredict.log")

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("below level")
	logger.Warn("artifacts missing", zap.String("file", "scaler.json"))
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"artifacts missing"`)
	assert.Contains(t, lines[0], `"file":"scaler.json"`)
}
