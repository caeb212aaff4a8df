package internal

import (
	"log/slog"
	"sync/atomic"
	"testing"
)

func TestLogLevel(t *testing.T) {
	defer func() {
		SetDebug(false)
		SetQuiet(false)
	}()

	tests := []struct {
		debug bool
		quiet bool
		want  slog.Level
	}{
		{false, false, slog.LevelInfo},
		{false, true, slog.LevelWarn},
		{true, false, slog.LevelDebug},
		{true, true, slog.LevelDebug},
	}
	for _, tt := range tests {
		SetDebug(tt.debug)
		SetQuiet(tt.quiet)
		if got := LogLevel(); got != tt.want {
			t.Errorf("LogLevel() with debug=%v quiet=%v = %v, want %v", tt.debug, tt.quiet, got, tt.want)
		}
	}
}

func TestParseFlag(t *testing.T) {
	var mode atomic.Bool
	parseFlag("true", &mode)
	if !mode.Load() {
		t.Fatal("parseFlag(true) did not enable the mode")
	}
	parseFlag("not-a-bool", &mode)
	if !mode.Load() {
		t.Fatal("parseFlag with an invalid value changed the mode")
	}
}
