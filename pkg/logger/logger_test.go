package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	if !Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	t.Cleanup(func() {
		globalLogger = zap.NewNop()
	})

	if err := InitWithOptions(Options{Level: "loud", Format: "console"}); err != nil {
		t.Fatalf("InitWithOptions returned error: %v", err)
	}
	if Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected debug to be disabled for unknown level")
	}
	if !Logger().Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info to be enabled")
	}
}

func TestLoggingHelpersEmitEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	restore := Replace(zap.New(core))
	t.Cleanup(restore)

	Info("info message", zap.String("k", "v"))
	Error("error message")
	Warn("warn message")
	Debug("debug message")

	if recorded.Len() != 4 {
		t.Fatalf("expected 4 log entries, got %d", recorded.Len())
	}

	want := []string{"info message", "error message", "warn message", "debug message"}
	for i, entry := range recorded.All() {
		if entry.Message != want[i] {
			t.Fatalf("entry %d message = %q, want %q", i, entry.Message, want[i])
		}
	}
}

func TestFromContextAddsRequestID(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(core))
	t.Cleanup(restore)

	ctx := WithRequestID(context.Background(), "req-42")
	FromContext(ctx, "auth").Info("hello")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["module"] != "auth" {
		t.Fatalf("expected module auth, got %v", fields["module"])
	}
	if fields["request_id"] != "req-42" {
		t.Fatalf("expected request id, got %v", fields["request_id"])
	}
}
