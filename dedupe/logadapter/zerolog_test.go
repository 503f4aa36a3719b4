package logadapter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sunder-dev/rundedupe/dedupe"
)

func TestZerologLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := NewZerologLogger(zl)

	l.Info("claimed signal", dedupe.F("id", "sig-1"), dedupe.F("attempt", 2))

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("unmarshal: %v, body: %s", err, buf.String())
	}
	if decoded["message"] != "claimed signal" {
		t.Fatalf("message = %v", decoded["message"])
	}
	if decoded["id"] != "sig-1" {
		t.Fatalf("id field = %v", decoded["id"])
	}
}

func TestZerologLogger_Warn(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := NewZerologLogger(zl)

	l.Warn("timed out")

	if !strings.Contains(buf.String(), "timed out") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

func TestZerologLogger_Debug_SuppressedByLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.InfoLevel)
	l := NewZerologLogger(zl)

	l.Debug("verbose detail")

	if buf.Len() != 0 {
		t.Fatalf("expected no output for suppressed debug level, got %q", buf.String())
	}
}
