package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Output: &buf, Component: ComponentLoader}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	logger.Info("loaded", FieldRows, 3)
	if !strings.Contains(buf.String(), "component=loader") || !strings.Contains(buf.String(), "rows=3") {
		t.Errorf("unexpected record %q", buf.String())
	}

	buf.Reset()
	cacheLogger := logger.WithComponent(ComponentCache)
	cacheLogger.Warn("miss")
	if cacheLogger.Component() != ComponentCache || !strings.Contains(buf.String(), "component=cache") {
		t.Errorf("unexpected record %q", buf.String())
	}
	if logger.Component() != ComponentLoader {
		t.Error("WithComponent must not change the parent logger")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelWarn)
	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("records below level were written: %q", buf.String())
	}
	logger.Error("shown")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("unexpected record %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q", got.Component())
	}

	logger, _ := newBufferLogger(slog.LevelInfo)
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext should return the stored logger")
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		logger, buf := newBufferLogger(slog.LevelDebug)
		ctx := NewContext(context.Background(), logger)
		r := httptest.NewRequest("GET", "/api/device-data/AE1", nil)

		LogHTTPEnd(ctx, r, tt.status, 12)

		out := buf.String()
		if !strings.Contains(out, tt.level) || !strings.Contains(out, "path=/api/device-data/AE1") {
			t.Errorf("status %d: unexpected record %q", tt.status, out)
		}
	}
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithOperation(OpAggregate).
		WithDevice("AE1", "").
		WithError(errors.New("boom"), ErrorTypeInternal)

	if fields[FieldOperation] != OpAggregate || fields[FieldAETitle] != "AE1" {
		t.Errorf("fields = %v", fields)
	}
	if _, ok := fields[FieldOrderNum]; ok {
		t.Error("empty order number should be omitted")
	}
	if fields[FieldError] != "boom" {
		t.Errorf("error field = %v", fields[FieldError])
	}
	if got := len(fields.ToSlice()); got != 2*len(fields) {
		t.Errorf("ToSlice length = %d, want %d", got, 2*len(fields))
	}

	if got := NewFields().WithError(nil, ErrorTypeInternal); len(got) != 0 {
		t.Errorf("nil error should add nothing, got %v", got)
	}
}
