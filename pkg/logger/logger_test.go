package logx

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(Config{Level: "warn", Service: "svc"}, &buf)
	l.Info().Msg("hidden")
	l.Warn().Str("op", "memory.read").Msg("shown")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry["service"] != "svc" || entry["op"] != "memory.read" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(Config{Level: "loud"}, &buf)
	l.Debug().Msg("debug")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at default level: %s", buf.String())
	}
	l.Info().Msg("info")
	if buf.Len() == 0 {
		t.Fatal("info line missing")
	}
}
