package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/bdobrica/Primus/common/trace"
	"github.com/bdobrica/Primus/internal/primus/observability"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := observability.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSONWithTrace(t *testing.T) {
	var buf bytes.Buffer
	base := observability.NewLogger(&buf, "info", "json")
	ctx := trace.WithTraceID(context.Background(), "t_abc")

	observability.WithTrace(ctx, base).Info("turn answered", "intent", "dialog_forward")
	base.Debug("hidden")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["trace_id"] != "t_abc" {
		t.Errorf("trace_id: got %v", rec["trace_id"])
	}
	if rec["intent"] != "dialog_forward" {
		t.Errorf("intent: got %v", rec["intent"])
	}
}

func TestWithTrace_NoTraceReturnsBase(t *testing.T) {
	var buf bytes.Buffer
	base := observability.NewLogger(&buf, "debug", "text")
	observability.WithTrace(context.Background(), base).Debug("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace_id in %q", buf.String())
	}
}

func TestRedactSecrets(t *testing.T) {
	got := observability.RedactSecrets("auth failed for sk-secret-value", "sk-secret-value")
	if strings.Contains(got, "sk-secret-value") {
		t.Errorf("secret leaked: %q", got)
	}
}
