package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{" DEBUG ", LogLevelDebug},
		{"TRACE", LogLevelTrace},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelWarn)

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown", "table", "t1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info and debug records to be dropped, got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "table=t1") {
		t.Errorf("expected warn record with attributes, got %q", out)
	}
}

func TestLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelTrace).With("run", "abc")

	logger.Trace("cell updated")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("expected TRACE level label, got %q", out)
	}
	if !strings.Contains(out, "run=abc") {
		t.Errorf("expected inherited attribute, got %q", out)
	}
	if logger.GetLevel() != LogLevelTrace {
		t.Errorf("GetLevel() = %v, want TRACE", logger.GetLevel())
	}
}
