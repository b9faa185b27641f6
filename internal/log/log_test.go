package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureLogs(t, LevelWarn)

	Debug("debug line")
	Info("info line")
	Warn("warn line", "pattern", "fifth-monday")
	Error("error line", errors.New("boom"), "id", 7)

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "[WARN] warn line pattern=fifth-monday")
	assert.Contains(t, out, "[ERROR] error line err=boom id=7")
}

func TestKeyValueFormatting(t *testing.T) {
	buf := captureLogs(t, LevelDebug)

	Info("event stored", "title", "Open Mic Night", "empty", "", 42, "skipped", "dangling")

	out := buf.String()
	assert.Contains(t, out, `title="Open Mic Night"`)
	assert.Contains(t, out, `empty=""`)
	assert.NotContains(t, out, "skipped")
	assert.NotContains(t, out, "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
