package initializer

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.Log{Level: 0, Format: "json", Prefix: "[checkout]"}, &buf)

	logger.Debug("hidden")
	logger.Info("🛒 [START] Checkout session created", "session_id", "s-1", "attempt", 1)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Contains(t, entry["msg"], "Checkout session created")
}

func TestNewLogger_DefaultsWithoutConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(nil, &buf)
	logger.Warn("careful", "state", "review")
	assert.Contains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "review")
}
