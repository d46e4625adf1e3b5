package logging

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed, got %q", buf.String())
	}
	New(&buf, true).Debug("shown", "took", 1234567*time.Microsecond)
	out := buf.String()
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "took=1.235s") {
		t.Fatalf("expected debug record with rounded duration, got %q", out)
	}
	if !regexp.MustCompile(`time="\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}"`).MatchString(out) {
		t.Fatalf("expected formatted timestamp, got %q", out)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected debug disabled on the discard logger")
	}
	logger.Error("dropped", "key", "value")
}
