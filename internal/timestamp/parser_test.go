package timestamp

import (
	"testing"
	"time"
)

func TestParseFromText_ISO8601(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z some log message"},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z some log message"},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00 some message"},
		{"space separated", "2024-01-15 10:30:45 some log message"},
		{"millis", "2024-01-15 10:30:45.123 some log message"},
		{"micros", "2024-01-15 10:30:45.123456 some log message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.ParseFromText(tt.input)
			if !result.Found {
				t.Errorf("ParseFromText(%q) did not find timestamp", tt.input)
			}
			if result.Timestamp.IsZero() {
				t.Errorf("ParseFromText(%q) returned zero timestamp", tt.input)
			}
		})
	}
}

func TestParseFromText_Syslog(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("Jan 15 10:30:45 some syslog message")
	if !result.Found {
		t.Error("syslog format not parsed")
	}
}

func TestParseFromText_TimeOnly(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("10:30:45.123 some log message")
	if !result.Found {
		t.Error("time-only format not parsed")
	}
}

func TestParseFromText_NoTimestamp(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("just a regular log message")
	if result.Found {
		t.Error("should not find timestamp in plain text")
	}
	if result.Remaining != "just a regular log message" {
		t.Errorf("remaining = %q, want original text", result.Remaining)
	}
}

func TestParseFromText_CommaDecimal(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("2024-01-15 10:30:45,123 international format")
	if !result.Found {
		t.Error("comma decimal format not parsed")
	}
}

func TestParseTimestamp_String(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("2024-01-15T10:30:45Z")
	if !ok {
		t.Fatal("ParseTimestamp string failed")
	}
	if ts.Year() != 2024 || ts.Month() != time.January || ts.Day() != 15 {
		t.Errorf("ParseTimestamp date = %v, want 2024-01-15", ts)
	}
}

func TestParseTimestamp_Numeric(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		value interface{}
		want  int64
	}{
		{"seconds", float64(946684800), 946684800},
		{"millis", float64(1600000000000), 1600000000},
		{"nanos", float64(1600000000000000000), 1600000000},
		{"int64 seconds", int64(946684800), 946684800},
		{"fractional seconds", float64(1705312245.5), 1705312245},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.ParseTimestamp(tt.value)
			if !ok {
				t.Fatalf("ParseTimestamp(%v) failed", tt.value)
			}
			if ts.Unix() != tt.want {
				t.Errorf("ParseTimestamp(%v).Unix() = %d, want %d", tt.value, ts.Unix(), tt.want)
			}
		})
	}
}

func TestParseTimestamp_EmptyString(t *testing.T) {
	p := NewParser()

	_, ok := p.ParseTimestamp("")
	if ok {
		t.Error("ParseTimestamp empty string should return false")
	}
}

func TestParseTimestamp_NumericString(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("1705312245000")
	if !ok {
		t.Fatal("ParseTimestamp numeric string failed")
	}
	if ts.Unix() != 1705312245 {
		t.Errorf("unix = %d, want 1705312245", ts.Unix())
	}
}

func TestParseFromText_Remaining(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("2024-01-15T10:30:45Z  INFO started")
	if !result.Found {
		t.Fatal("timestamp not found")
	}
	if result.Remaining != "INFO started" {
		t.Errorf("remaining = %q, want %q", result.Remaining, "INFO started")
	}
	if result.Timestamp.Unix() != 1705314645 {
		t.Errorf("unix = %d, want 1705314645", result.Timestamp.Unix())
	}
}
