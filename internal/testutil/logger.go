// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a debug-level logger that writes to t.Log.
// Output only shows for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// LogBuffer records the messages of a logger made by NewLogBuffer.
type LogBuffer struct {
	mu   sync.Mutex
	msgs []string
}

// NewLogBuffer returns a debug-level logger that records each message
// text, without attributes, in the returned buffer.
func NewLogBuffer() (*slog.Logger, *LogBuffer) {
	b := new(LogBuffer)
	return slog.New(recordHandler{b}), b
}

// Messages returns the recorded messages in order.
func (b *LogBuffer) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

type recordHandler struct {
	buf *LogBuffer
}

func (h recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.buf.mu.Lock()
	h.buf.msgs = append(h.buf.msgs, r.Message)
	h.buf.mu.Unlock()
	return nil
}

func (h recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recordHandler) WithGroup(string) slog.Handler      { return h }
