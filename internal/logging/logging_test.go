package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := logging.New(config.LogConfig{Level: "warn"}, &buf)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"app":"memorease"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := logging.New(config.LogConfig{Level: "loud"}, &buf)
	defer closer.Close()

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")

	assert.NotContains(t, buf.String(), `"message":"debug"`)
	assert.Contains(t, buf.String(), `"message":"info"`)
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "memorease.log")
	var buf bytes.Buffer
	logger, closer := logging.New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &buf)

	logger.Info().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, buf.String(), "to file")
}
