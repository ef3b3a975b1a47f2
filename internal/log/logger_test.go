package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Run: "run-1"})
	defer Configure(Config{})

	logger := WithComponent("optim")
	logger.Info().Str("event", "optim.created").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "optim", entry["component"])
	assert.Equal(t, "run-1", entry["run"])
	assert.Equal(t, "optim.created", entry["event"])
	assert.Equal(t, "info", entry["level"])
}

func TestConfigure_Level(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	defer Configure(Config{})

	logger := WithComponent("data")
	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
