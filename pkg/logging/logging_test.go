package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/mcp-server-sentry/pkg/config"
)

func TestNewWithWriter(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, cfg)

	logger.Info("dropped")
	logger.Warn("kept", "tool", "list_teams")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "list_teams", entry["tool"])
}

func TestUnknownLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "chatty"

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, cfg)

	assert.Contains(t, buf.String(), "Unknown log level")

	buf.Reset()
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}
