package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSONComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	closer, err := Setup(Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger := Component("output")
	logger.Debug().Str("endpoint", "spk").Msg("attached")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "output", line["component"])
	assert.Equal(t, "spk", line["endpoint"])
	assert.Equal(t, "debug", line["level"])
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	closer, err := Setup(Options{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger := Component("core")
	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestSetupRejectsBadInput(t *testing.T) {
	_, err := Setup(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = Setup(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestSetupWritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "chorusd.log")
	closer, err := Setup(Options{Format: "json", Output: &buf, File: path})
	require.NoError(t, err)

	logger := Component("daemon")
	logger.Info().Msg("hello")
	require.NoError(t, closer.Close())

	assert.FileExists(t, path)
	assert.Contains(t, buf.String(), "hello")
}
