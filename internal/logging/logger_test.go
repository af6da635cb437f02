package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(&buf, "bogus")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("invalid level must default to warn, got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Fatalf("expected warn record, got %q", out)
	}

	buf.Reset()
	NewConsole(&buf, "debug").Debug("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Fatalf("expected debug record, got %q", buf.String())
	}
}
