package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"webinar2ebook/internal/services"
)

func TestConsoleHandlerPullsComponentForward(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("chapter generated", String(FieldComponent, "generator"), String(FieldChapter, "Introduction"))

	line := buf.String()
	if !strings.Contains(line, "generator: chapter generated") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "chapter=Introduction") {
		t.Fatalf("expected chapter attr, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not repeat as key=value: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Warn("skip chapter", String("reason", "no supporting quotes"))

	if !strings.Contains(buf.String(), `reason="no supporting quotes"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newConsoleHandler(&buf, lvl, false))

	ctx := services.WithJobID(context.Background(), "job-42")
	ctx = services.WithPhase(ctx, "evidence_map")

	WithContext(ctx, base).Info("phase started")

	line := buf.String()
	if !strings.Contains(line, "job_id=job-42") {
		t.Fatalf("expected job_id field, got %q", line)
	}
	if !strings.Contains(line, "phase=evidence_map") {
		t.Fatalf("expected phase field, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
