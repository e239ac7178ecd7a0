package observability

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerForwardsFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))

	log.Info("embedded page",
		String("file", "scan.pdf"),
		Int("page", 3),
		Int64("bytes", 12345),
		Float64("scale", 0.85),
	)

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "embedded page" || e.Level != zapcore.InfoLevel {
		t.Fatalf("entry = %+v", e.Entry)
	}
	got := e.ContextMap()
	if got["file"] != "scan.pdf" {
		t.Fatalf("file field = %v", got["file"])
	}
	if got["page"] != int64(3) {
		t.Fatalf("page field = %v (%T)", got["page"], got["page"])
	}
	if got["scale"] != 0.85 {
		t.Fatalf("scale field = %v", got["scale"])
	}
}

func TestZapLoggerWithAttachesContext(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core)).With(String("request_id", "abc"))

	log.Warn("skipping word", Error("reason", errors.New("no glyphs")))

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	got := entries[0].ContextMap()
	if got["request_id"] != "abc" {
		t.Fatalf("request_id = %v", got["request_id"])
	}
	if got["reason"] != "no glyphs" {
		t.Fatalf("reason = %v", got["reason"])
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger("shouty", false); err == nil {
		t.Fatal("bad level accepted")
	}
	if _, err := NewLogger("debug", true); err != nil {
		t.Fatalf("debug level rejected: %v", err)
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	var log Logger = NopLogger{}
	log = log.With(String("k", "v"))
	log.Debug("nothing")
	log.Error("nothing", Int("n", 1))
}
