package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_json(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "json", "debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	Component(log, "worker").WithField("playlist_id", 7).Info("sync done")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "worker", line["component"])
	assert.Equal(t, "sync done", line["msg"])
	assert.EqualValues(t, 7, line["playlist_id"])
}

func TestNewWithOutput_levelFallback(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{}, "text", "nonsense")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
