package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       slog.Level
		shouldDebug bool
		shouldInfo  bool
		shouldWarn  bool
	}{
		{"DEBUG", slog.LevelDebug, true, true, true},
		{"INFO", slog.LevelInfo, false, true, true},
		{"WARN", slog.LevelWarn, false, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			l := NewLogger(tc.level, buf)
			l.Debug("debug-line")
			l.Info("info-line")
			l.Warn("warn-line")

			assert.Equal(t, tc.shouldDebug, bytes.Contains(buf.Bytes(), []byte("debug-line")))
			assert.Equal(t, tc.shouldInfo, bytes.Contains(buf.Bytes(), []byte("info-line")))
			assert.Equal(t, tc.shouldWarn, bytes.Contains(buf.Bytes(), []byte("warn-line")))
		})
	}
}

func TestNewWithFormat(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	NewWithFormat(slog.LevelInfo, "JSON", buf).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewWithFormat(slog.LevelInfo, "logfmt", buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestErr(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	l := NewLogger(slog.LevelDebug, buf)
	want := "intentionally failing"
	l.Error("this is a test", Err(errors.New(want)))

	if !bytes.Contains(buf.Bytes(), []byte(`error="`+want+`"`)) {
		t.Errorf("expected error message to contain %q, got: %q", want, buf.String())
	}
}
