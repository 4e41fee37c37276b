package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	log.Debug("not written")
	log.Info("not written")
	log.Warn("written")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var entry Entry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if entry.Level != "warn" || entry.Message != "written" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	child := log.WithComponent("compactor").With(map[string]any{"org": "acme"})
	child.Info("merged", map[string]any{"segments": 3})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if entry.Component != "compactor" {
		t.Errorf("Component = %q, want compactor", entry.Component)
	}
	if entry.Fields["org"] != "acme" {
		t.Errorf("Fields[org] = %v, want acme", entry.Fields["org"])
	}
	if entry.Fields["segments"] != float64(3) {
		t.Errorf("Fields[segments] = %v, want 3", entry.Fields["segments"])
	}

	// Parent must not see the child's fields.
	buf.Reset()
	log.Info("plain")
	var parent Entry
	if err := json.Unmarshal(buf.Bytes(), &parent); err != nil {
		t.Fatalf("unmarshal parent entry: %v", err)
	}
	if parent.Component != "" || len(parent.Fields) != 0 {
		t.Errorf("parent entry contaminated: %+v", parent)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})

	log.WithComponent("scan").Info("pass complete", map[string]any{"files": 7})

	out := buf.String()
	if !strings.Contains(out, "[info] scan: pass complete") {
		t.Errorf("text output = %q", out)
	}
	if !strings.Contains(out, "files=7") {
		t.Errorf("text output missing field: %q", out)
	}
}
