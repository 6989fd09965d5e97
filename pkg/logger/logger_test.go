package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// captureLogs redirects the global logger to an in-memory buffer for the
// duration of fn and returns the captured output.
func captureLogs(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	prev := defaultLogger
	defaultLogger = slog.New(handler)
	t.Cleanup(func() { defaultLogger = prev })
	fn()
	return buf.String()
}

func TestInfo(t *testing.T) {
	out := captureLogs(t, func() { Info("hello", "key", "val") })
	if !strings.Contains(out, "hello") || !strings.Contains(out, "key=val") {
		t.Errorf("expected 'hello key=val' in output, got: %s", out)
	}
}

func TestWarnAndError(t *testing.T) {
	out := captureLogs(t, func() {
		Warn("warn-msg")
		Error("err-msg", "err", "oops")
	})
	if !strings.Contains(out, "warn-msg") || !strings.Contains(out, "err-msg") {
		t.Errorf("expected both messages in output: %s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "level=ERROR") {
		t.Errorf("expected levels in output: %s", out)
	}
}

func TestDebug(t *testing.T) {
	out := captureLogs(t, func() { Debug("dbg-msg") })
	if !strings.Contains(out, "dbg-msg") {
		t.Errorf("expected dbg-msg in output: %s", out)
	}
}

func TestFormatted(t *testing.T) {
	out := captureLogs(t, func() { Printf("printf-%s %d", "z", 42) })
	if !strings.Contains(out, "printf-z 42") || !strings.Contains(out, "level=INFO") {
		t.Errorf("expected formatted info line in output: %s", out)
	}
}

func TestDisabledLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	prev := defaultLogger
	defaultLogger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	defer func() { defaultLogger = prev }()
	Info("quiet")
	Printf("quieter %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got: %s", buf.String())
	}
}

func TestLevelFromEnv(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromEnv(in); got != want {
			t.Errorf("levelFromEnv(%q) = %v, want %v", in, got, want)
		}
	}
}
