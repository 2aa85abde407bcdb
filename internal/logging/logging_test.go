package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/meddevice/medauth/audit"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return out
}

func TestLoggerAddsServiceAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("medauth", "info", &buf)

	ctx := audit.WithRequestInfo(context.Background(), audit.RequestInfo{RequestID: "req-7"})
	logger.InfoContext(ctx, "login ok")

	line := decodeLine(t, &buf)
	if line["service"] != "medauth" {
		t.Fatalf("expected service attr, got %v", line["service"])
	}
	if line["request_id"] != "req-7" {
		t.Fatalf("expected request_id attr, got %v", line["request_id"])
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatal("trace_id set without a span")
	}
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("", "debug", &buf).WithGroup("g")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "hello")

	line := decodeLine(t, &buf)
	group, ok := line["g"].(map[string]any)
	if !ok {
		t.Fatalf("expected group g, got %v", line)
	}
	if group["trace_id"] != traceID.String() || group["span_id"] != spanID.String() {
		t.Fatalf("unexpected trace attrs %v", group)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("svc", "error", &buf)
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at error level: %s", buf.String())
	}
}
