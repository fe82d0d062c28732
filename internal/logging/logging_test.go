package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// capture runs f with the process logger writing JSON at debug level into
// a buffer and returns the decoded records.
func capture(t *testing.T, f func()) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	InitLogger(LevelDebug, FormatJSON)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		InitLogger(LevelInfo, FormatJSON)
	})
	f()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var r map[string]any
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("not JSON: %q", line)
		}
		records = append(records, r)
	}
	return records
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"": LevelInfo, "debug": LevelDebug, "INFO": LevelInfo, " warn ": LevelWarn, "warning": LevelWarn, "error": LevelError}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel accepted verbose")
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatAuto, "auto": FormatAuto, "json": FormatJSON, "Text": FormatText}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat accepted xml")
	}
}

func TestContextFields(t *testing.T) {
	ctx := WithRun(WithSession(context.Background(), "s-1"), "r-9")
	if SessionID(ctx) != "s-1" || RunID(ctx) != "r-9" {
		t.Fatalf("ids = %q, %q", SessionID(ctx), RunID(ctx))
	}
	if SessionID(context.Background()) != "" || RunID(context.Background()) != "" {
		t.Error("empty context carries ids")
	}

	records := capture(t, func() {
		DebugContext(ctx, "d")
		InfoContext(ctx, "i")
		WarnContext(ctx, "w")
		ErrorContext(ctx, "e")
		Info("plain")
	})
	if len(records) != 5 {
		t.Fatalf("got %d records", len(records))
	}
	for _, r := range records[:4] {
		if r["session"] != "s-1" || r["run"] != "r-9" {
			t.Errorf("record %v lacks ids", r)
		}
	}
	if _, ok := records[4]["session"]; ok {
		t.Error("plain record carries a session")
	}
}

func TestDomainHelpers(t *testing.T) {
	ctx := WithSession(context.Background(), "s-2")
	records := capture(t, func() {
		SectionWarning(ctx, "Contents/section1.xml", errors.New("unexpected EOF"), "source", "a.hwpx")
		ResourceWarning(ctx, 3, "image9")
		BuildEvent(ctx, "repackage", 1500*time.Millisecond, "units", 2)
	})
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}

	sec := records[0]
	if sec["msg"] != "section_skipped" || sec["level"] != "WARN" || sec["section"] != "Contents/section1.xml" ||
		sec["error"] != "unexpected EOF" || sec["source"] != "a.hwpx" || sec["session"] != "s-2" {
		t.Errorf("section warning = %v", sec)
	}
	res := records[1]
	if res["msg"] != "resource_dropped" || res["unit_id"] != float64(3) || res["resource_id"] != "image9" {
		t.Errorf("resource warning = %v", res)
	}
	ev := records[2]
	if ev["msg"] != "build_event" || ev["stage"] != "repackage" || ev["duration_ms"] != float64(1500) || ev["units"] != float64(2) {
		t.Errorf("build event = %v", ev)
	}
}

func TestTimestampIsRFC3339(t *testing.T) {
	records := capture(t, func() { Info("ts") })
	ts, _ := records[0]["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q: %v", ts, err)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	InitLogger(LevelWarn, FormatText)
	defer func() {
		SetOutput(os.Stderr)
		InitLogger(LevelInfo, FormatJSON)
	}()

	Info("hidden")
	Warn("shown", "key", "value")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `msg=shown`) || !strings.Contains(out, "key=value") {
		t.Errorf("output = %q", out)
	}
}

func TestAutoFormatOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	InitLogger(LevelInfo, FormatAuto)
	defer func() {
		SetOutput(os.Stderr)
		InitLogger(LevelInfo, FormatJSON)
	}()

	Info("auto")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("auto format off a terminal should be JSON, got %q", buf.String())
	}
	if Logger() == nil {
		t.Error("Logger() is nil")
	}
}
