package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", "json", &buf)
	l.WithField("vehicle_id", "car-1").Debug("checked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "checked", entry["msg"])
	assert.Equal(t, "car-1", entry["vehicle_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewUnknownLevel(t *testing.T) {
	l := New("loud", "text", &bytes.Buffer{})
	assert.Equal(t, log.InfoLevel, l.GetLevel())
}
