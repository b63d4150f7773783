package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/pkg/config"
)

func TestGlobalLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewWithWriter(&buf, logrus.DebugLevel))
	t.Cleanup(func() { SetGlobalLogger(newDefault()) })

	Info("upload completed", map[string]interface{}{"video_id": "v1", "bytes": 1000})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "upload completed", line["msg"])
	assert.Equal(t, "v1", line["video_id"])
	assert.Equal(t, float64(1000), line["bytes"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewWithWriter(&buf, logrus.InfoLevel))
	t.Cleanup(func() { SetGlobalLogger(newDefault()) })

	Debugf("hidden %d", 1)
	assert.Zero(t, buf.Len())

	Warnf("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")
}

func TestNewLoggerParsesConfig(t *testing.T) {
	l := NewLogger(&config.Config{Log: config.LogConfig{Level: "warn", Format: "json"}})
	assert.Equal(t, logrus.WarnLevel, l.Raw().GetLevel())
	_, ok := l.Raw().Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	fallback := NewLogger(&config.Config{Log: config.LogConfig{Level: "nonsense"}})
	assert.Equal(t, logrus.InfoLevel, fallback.Raw().GetLevel())
}
