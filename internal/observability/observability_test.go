package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"posto-dashboard/internal/config"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"hello"`},
		{"text", "msg=hello"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(config.LoggerConfig{Level: "info", Format: tt.format}, &buf)
			logger.Info("hello")

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log output %q should contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(config.LoggerConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithUser(WithRequestID(context.Background(), "abc"), "gerente")
	FromContext(ctx, base).Info("x")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"abc"`) || !strings.Contains(out, `"user":"gerente"`) {
		t.Errorf("missing context attributes in %q", out)
	}
}

func TestSpan_ParentLinking(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "GET /dashboard")
	_, child := StartSpan(ctx, "upstream fuel")

	if child.TraceID != parent.TraceID {
		t.Error("child should share the parent's trace id")
	}
	if child.ParentID != parent.SpanID {
		t.Error("child should point to the parent span")
	}

	child.SetError(errors.New("timeout"))
	child.Finish()
	if child.Status != SpanStatusError || child.Error != "timeout" {
		t.Errorf("unexpected span state %+v", child)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("GET /dashboard", http.StatusOK, 10*time.Millisecond)
	m.ObserveUpstream("fueltec_vendas", nil, time.Millisecond)
	m.ObserveCache(true)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, name := range []string{"posto_http_requests_total", "posto_upstream_requests_total", "posto_cache_lookups_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", 200, time.Second)
	m.ObserveUpstream("x", nil, time.Second)
	m.ObserveCache(false)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}
