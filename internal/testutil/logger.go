// Package testutil holds helpers shared by stagehand's test suites.
package testutil

import (
	"log/slog"
	"testing"
)

// tbWriter routes log output through testing.TB so it shows up attached
// to the failing test (or under -v).
type tbWriter struct {
	tb testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}

// NewTestLogger returns a debug-level slog.Logger writing to tb.Log.
func NewTestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	h := slog.NewTextHandler(tbWriter{tb: tb}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h)
}
