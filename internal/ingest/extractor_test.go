package ingest

import (
	"testing"

	"github.com/tinytelemetry/pulse/internal/model"
)

func TestParseJSONLines_Pino(t *testing.T) {
	t.Parallel()
	lines := ParseJSONLines(`{"level":30,"time":1705312245000,"msg":"request processed","hostname":"web1","name":"gateway"}`)
	if len(lines) != 1 {
		t.Fatalf("records = %d, want 1", len(lines))
	}
	got := lines[0]
	if got.Level != model.SeverityInfo {
		t.Errorf("level = %v, want INFO (pino level 30)", got.Level)
	}
	if got.Service != "gateway" {
		t.Errorf("service = %q, want gateway", got.Service)
	}
	if got.Timestamp.Unix() != 1705312245 {
		t.Errorf("timestamp = %d, want 1705312245", got.Timestamp.Unix())
	}
}

func TestParseJSONLines_Winston(t *testing.T) {
	t.Parallel()
	lines := ParseJSONLines(`{"level":"error","message":"connection refused","timestamp":"2024-01-15T10:30:45.000Z","service":"api"}`)
	if len(lines) != 1 {
		t.Fatalf("records = %d, want 1", len(lines))
	}
	got := lines[0]
	if got.Level != model.SeverityError {
		t.Errorf("level = %v, want ERROR", got.Level)
	}
	if got.Service != "api" {
		t.Errorf("service = %q, want api", got.Service)
	}
	if got.Timestamp.Unix() != 1705314645 {
		t.Errorf("timestamp = %d, want 1705314645", got.Timestamp.Unix())
	}
}

func TestParseJSONLines_LevelFromMessage(t *testing.T) {
	t.Parallel()
	lines := ParseJSONLines(`{"msg":"FATAL out of memory"}`)
	if len(lines) != 1 || lines[0].Level != model.SeverityFatal {
		t.Fatalf("records = %+v, want one FATAL", lines)
	}
	if lines[0].Service != "" {
		t.Errorf("service = %q, want empty", lines[0].Service)
	}
}

func TestParseJSONLines_InvalidJSON(t *testing.T) {
	t.Parallel()
	if lines := ParseJSONLines("this is not json"); lines != nil {
		t.Errorf("ParseJSONLines = %+v, want nil for invalid JSON", lines)
	}
}

func TestParseJSONLines_OTELLogRecord(t *testing.T) {
	t.Parallel()
	lines := ParseJSONLines(`{"observedTimeUnixNano":"1705312245000000000","severityNumber":"14","body":"slow"}`)
	if len(lines) != 1 {
		t.Fatalf("records = %d, want 1", len(lines))
	}
	if lines[0].Level != model.SeverityWarn {
		t.Errorf("level = %v, want WARN", lines[0].Level)
	}
	if lines[0].Timestamp.Unix() != 1705312245 {
		t.Errorf("timestamp = %d, want 1705312245", lines[0].Timestamp.Unix())
	}
}

func TestParseTextLine(t *testing.T) {
	t.Parallel()
	got := ParseTextLine("2024-01-15T10:30:45Z ERROR: connection\trefused")
	if got.Level != model.SeverityError {
		t.Errorf("level = %v, want ERROR", got.Level)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should be parsed from text")
	}
}

func TestExtractStringField(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{"a": "", "b": "x", "n": float64(3)}
	if got := ExtractStringField(raw, "a", "b"); got != "x" {
		t.Errorf("ExtractStringField = %q, want x", got)
	}
	if got := ExtractStringField(raw, "n"); got != "3" {
		t.Errorf("ExtractStringField = %q, want 3", got)
	}
	if got := ExtractStringField(raw, "missing"); got != "" {
		t.Errorf("ExtractStringField = %q, want empty", got)
	}
}

func TestExtractService(t *testing.T) {
	t.Parallel()
	tests := []struct {
		attrs map[string]string
		want  string
	}{
		{map[string]string{"service.name": "a", "service": "b"}, "a"},
		{map[string]string{"service": "b", "app": "c"}, "b"},
		{map[string]string{"serviceName": "d"}, "d"},
		{map[string]string{"k8s.pod.name": "pod-1"}, "pod-1"},
		{map[string]string{}, model.UnknownSource},
	}
	for _, tt := range tests {
		if got := ExtractService(tt.attrs); got != tt.want {
			t.Errorf("ExtractService(%v) = %q, want %q", tt.attrs, got, tt.want)
		}
	}
}

func TestCountJSONDepth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want int
	}{
		{`{`, 1},
		{`}`, -1},
		{`{"a": {"b": [1, 2]}}`, 0},
		{`"{ not counted }"`, 0},
		{`{"esc": "quote \" {"`, 1},
	}
	for _, tt := range tests {
		if got := CountJSONDepth(tt.line); got != tt.want {
			t.Errorf("CountJSONDepth(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestParseJSONLines_NoMessageField(t *testing.T) {
	t.Parallel()
	lines := ParseJSONLines(`{"service":"api","level":"warn","latency_ms":12}`)
	if len(lines) != 1 {
		t.Fatalf("records = %d, want 1", len(lines))
	}
	if lines[0].Level != model.SeverityWarn || lines[0].Service != "api" {
		t.Errorf("record = %+v, want api/WARN", lines[0])
	}
}
