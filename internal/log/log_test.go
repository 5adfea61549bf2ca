package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("ingest complete", "documents", 3)

	out := buf.String()
	if !strings.Contains(out, "ingest complete") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "documents=3") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("retrieval done", "entity", "representative")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "retrieval done" {
		t.Errorf("msg = %v, want %q", entry["msg"], "retrieval done")
	}
	if entry["entity"] != "representative" {
		t.Errorf("entity = %v, want %q", entry["entity"], "representative")
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("noise")
	logger.Info("still noise")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Errorf("below-level entries should be dropped, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing, got %q", out)
	}
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	logger := NewNop()
	// Must not panic and must accept all levels.
	logger.Debug("a")
	logger.Info("b")
	logger.Error("c")
}
