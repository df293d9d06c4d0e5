package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: "json", Output: buf, Component: ComponentHTTP})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_StampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)
	logger.Info("hello", "k", "v")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0][FieldComponent] != ComponentHTTP {
		t.Errorf("component = %v, want %s", lines[0][FieldComponent], ComponentHTTP)
	}
	if logger.Component() != ComponentHTTP {
		t.Errorf("Component() = %s", logger.Component())
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo).WithComponent(ComponentLedger)
	logger.Info("x")

	lines := decodeLines(t, &buf)
	if lines[0][FieldComponent] != ComponentLedger {
		t.Errorf("component = %v, want %s", lines[0][FieldComponent], ComponentLedger)
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("fallback component = %s", l.Component())
	}
	logger := Discard()
	if got := FromContext(NewContext(context.Background(), logger)); got != logger {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestMiddleware_InjectsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	h := Middleware(logger)(RequestIDMiddleware(func(r *http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "req_1" {
		t.Errorf("log lines = %v", lines)
	}
}

func TestStructuredLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelDebug))
	r := httptest.NewRequest(http.MethodGet, "/api/summary?period=2024-03", nil)
	ctx := context.Background()

	sl.LogHTTPEnd(ctx, r, 200, 3, "req_a", "127.0.0.1")
	sl.LogHTTPEnd(ctx, r, 404, 3, "req_b", "127.0.0.1")
	sl.LogHTTPEnd(ctx, r, 502, 3, "req_c", "127.0.0.1")
	sl.LogLedgerLoaded(ctx, "memory", 2, 10, 1, 0)
	sl.LogError(ctx, "refresh failed", errors.New("boom"), ComponentLedger, OpRefresh, ErrorTypeSource)

	lines := decodeLines(t, &buf)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	wantLevels := []string{"INFO", "WARN", "ERROR", "WARN", "ERROR"}
	for i, want := range wantLevels {
		if lines[i]["level"] != want {
			t.Errorf("line %d level = %v, want %s", i, lines[i]["level"], want)
		}
	}
	if lines[0][FieldQuery] != "period=2024-03" {
		t.Errorf("query = %v", lines[0][FieldQuery])
	}
	if lines[3][FieldRows] != float64(10) || lines[3][FieldSource] != "memory" {
		t.Errorf("ledger fields = %v", lines[3])
	}
	if lines[4][FieldError] != "boom" || lines[4][FieldErrorType] != ErrorTypeSource {
		t.Errorf("error fields = %v", lines[4])
	}
}
