package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"  WARN ": slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	ctx := context.Background()
	l := NewLogger("warn")
	if l.Handler().Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be suppressed at warn level")
	}
	if !l.Handler().Enabled(ctx, slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}
