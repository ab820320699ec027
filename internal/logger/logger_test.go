package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesPlainLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.LogCheckIn("first_check_in", "abc", "welcome")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[CHECKIN")
	assert.Contains(t, out, "[first_check_in] abc - welcome")
}

func TestSetLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetLevel(WARN)

	l.Debug("x", "debug line")
	l.Info("x", "info line")
	l.Warn("x", "warn line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)
	l.Error("database", "insert failed")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "invite-service-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == "insert failed" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "DATABASE", entry.Category)
		}
	}
	assert.True(t, found)
}
