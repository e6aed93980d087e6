package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Info().Str("key", "value").Msg("test message")

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Errorf("expected output to contain message, got: %s", out)
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected output to contain field, got: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)

	got.Info().Msg("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("logger from context did not write to original buffer")
	}
}

func TestFromContextDefault(t *testing.T) {
	// Must not panic when no logger is attached.
	log := FromContext(context.Background())
	log.Debug().Msg("default logger")
}
