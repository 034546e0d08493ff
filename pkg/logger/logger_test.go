package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestWriterLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("chart", "abc"))
	l.Warn("dropped", String("reason", "malformed"), Int("n", 2), Error(errors.New("boom")))

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if m["level"] != "warn" || m["message"] != "dropped" {
		t.Fatalf("unexpected entry %v", m)
	}
	if m["chart"] != "abc" || m["reason"] != "malformed" || m["error"] != "boom" {
		t.Fatalf("missing fields %v", m)
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("nothing", Bool("x", true))
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
}
