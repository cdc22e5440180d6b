package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: DEBUG, Output: &buf, Service: "homestay"})
	l.Debug("hold created", "booking_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hold created", rec["msg"])
	assert.Equal(t, "homestay", rec[SERVICE])
	assert.EqualValues(t, 7, rec["booking_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WARN, Format: "text", Output: &buf})
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, ParseLevel(ERROR))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer
	l := New(Config{Output: &buf, File: path})
	l.Info("to both")
	assert.Contains(t, buf.String(), "to both")
	assert.FileExists(t, path)
}
