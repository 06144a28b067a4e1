package textcore

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	if l == nil {
		t.Fatal("Logger() = nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger is enabled, want silent")
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	Logger().Info("atlas ready", "size", 512)
	if got := buf.String(); !strings.Contains(got, "atlas ready") || !strings.Contains(got, "size=512") {
		t.Errorf("log output = %q, want record with message and attr", got)
	}
}

func TestSetLoggerNilRestoresSilence(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	SetLogger(nil)
	Logger().Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("log output = %q after SetLogger(nil), want none", buf.String())
	}
}
