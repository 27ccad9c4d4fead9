package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantTrace bool
	}{
		{"info", false, false},
		{"debug", true, false},
		{"trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("rendered script")
			logger.Log(context.Background(), LevelTrace, "script body")
			logger.Info("generation done")

			out := buf.String()
			if got := strings.Contains(out, "rendered script"); got != tt.wantDebug {
				t.Errorf("debug output present = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "script body"); got != tt.wantTrace {
				t.Errorf("trace output present = %v, want %v", got, tt.wantTrace)
			}
			if !strings.Contains(out, "generation done") {
				t.Error("info output missing")
			}
			if tt.wantTrace && !strings.Contains(out, "level=TRACE") {
				t.Errorf("trace level not labelled: %s", out)
			}
		})
	}
}

func TestNewEventLog_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	if el := NewEventLog(dir, "info"); el != nil {
		t.Error("expected nil EventLog at info level")
	}
	if _, err := os.Stat(filepath.Join(dir, EventLogFile)); !os.IsNotExist(err) {
		t.Errorf("%s should not exist at info level", EventLogFile)
	}
}

func TestEventLog_Writes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs")
	el := NewEventLog(dir, "debug")
	if el == nil {
		t.Fatal("expected EventLog at debug level")
	}

	event := map[string]any{"event": "script", "condition": 3}
	el.Log(event)
	el.Log(map[string]any{"event": "script", "condition": 4})
	el.Close()

	if _, ok := event["time"]; ok {
		t.Error("Log() mutated the caller's map")
	}

	data, err := os.ReadFile(filepath.Join(dir, EventLogFile))
	if err != nil {
		t.Fatalf("reading event log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if entry["event"] != "script" || entry["condition"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestEventLog_Event(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "debug")
	fields := map[string]any{"run": "RUN_C0_P1_1000", "rows": 2}
	el.Event(EventRun, fields)
	el.Event(EventIncompleteRun, map[string]any{"run": "RUN_C0_P2_1000"})
	el.Close()

	if _, ok := fields["event"]; ok {
		t.Error("Event() mutated the caller's map")
	}

	data, err := os.ReadFile(filepath.Join(dir, EventLogFile))
	if err != nil {
		t.Fatalf("reading event log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	tests := []struct {
		line string
		kind EventKind
		run  string
	}{
		{lines[0], EventRun, "RUN_C0_P1_1000"},
		{lines[1], EventIncompleteRun, "RUN_C0_P2_1000"},
	}
	for _, tt := range tests {
		var entry map[string]any
		if err := json.Unmarshal([]byte(tt.line), &entry); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		if entry["event"] != string(tt.kind) || entry["run"] != tt.run {
			t.Errorf("entry = %v, want event %s for %s", entry, tt.kind, tt.run)
		}
	}
}

func TestEventLog_NilSafety(t *testing.T) {
	var el *EventLog
	el.Log(map[string]any{"event": "noop"})
	el.Event(EventScript, nil)
	el.Close()
}

func TestEventLog_LogAfterClose(t *testing.T) {
	el := NewEventLog(t.TempDir(), "trace")
	el.Close()
	el.Log(map[string]any{"event": "late"})
}
