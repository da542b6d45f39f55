package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.WithField("stage", "dial").Warn("tunnel failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "one JSON object: %s", buf.String())
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "tunnel failed", entry["msg"])
	assert.Equal(t, "dial", entry["stage"])
}

func TestNewText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "text")
	require.NoError(t, err)

	logger.WithField("target", "ssh.internal:22").Debug("handshaking")
	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), "target=\"ssh.internal:22\"")
}

func TestNewRejectsBadSettings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := New(&buf, "loud", "text")
	assert.Error(t, err)

	_, err = New(&buf, "info", "xml")
	assert.ErrorContains(t, err, "unknown log format")
}
