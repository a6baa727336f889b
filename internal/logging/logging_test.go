package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_Threshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "engine", LevelWarn)

	l.Debugf("hidden")
	l.Infof("hidden")
	l.Warnf("fell behind period=%ds", 120)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("sub-threshold lines logged: %q", out)
	}
	if !strings.Contains(out, "WARN engine: fell behind period=120s") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "daemon", LevelInfo)

	l.WithComponent("dispatch").Infof("ok")

	if !strings.Contains(buf.String(), " INFO dispatch: ok") {
		t.Fatalf("component tag missing: %q", buf.String())
	}
}
