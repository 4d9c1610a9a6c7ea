package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInitSwitchesExistingLoggers(t *testing.T) {
	// Logger created before Init must pick up the new handler.
	log := L("capture")

	var buf bytes.Buffer
	Init("text", "info", &buf)
	defer Init("text", "info", nil)

	log.Info("frame published", "width", 1920)

	out := buf.String()
	if !strings.Contains(out, "frame published") {
		t.Fatalf("output missing message: %q", out)
	}
	if !strings.Contains(out, "component=capture") {
		t.Fatalf("output missing component attr: %q", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)
	defer Init("text", "info", nil)

	L("hub").Debug("subscriber added")

	if !strings.Contains(buf.String(), `"component":"hub"`) {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
}

func TestInitAlternatingFormats(t *testing.T) {
	// The root handler swaps between distinct handler implementations;
	// every switch must take effect without disturbing live loggers.
	defer Init("text", "info", nil)
	log := L("preview")

	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		Init("json", "info", &buf)
		log.Info("swap check")
		if !strings.Contains(buf.String(), `"component":"preview"`) {
			t.Fatalf("iteration %d: expected JSON output, got %q", i, buf.String())
		}

		buf.Reset()
		Init("text", "info", &buf)
		log.Info("swap check")
		if !strings.Contains(buf.String(), "component=preview") {
			t.Fatalf("iteration %d: expected text output, got %q", i, buf.String())
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "warn", &buf)
	defer Init("text", "info", nil)

	L("test").Info("filtered out")
	L("test").Warn("kept")

	out := buf.String()
	if strings.Contains(out, "filtered out") {
		t.Fatalf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
