package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", "json")
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("[CACHE] fault", "key", "volume_stats|daily")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "[CACHE] fault", entry["msg"])
	assert.Equal(t, "trahn-analytics", entry["service"])
	assert.Equal(t, "volume_stats|daily", entry["key"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "DEBUG", "text")
	require.NoError(t, err)
	log.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(&buf, "info", "json")
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
	FromContext(ctx, base).Info("served")
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)

	assert.Same(t, base, FromContext(context.Background(), base))
}
