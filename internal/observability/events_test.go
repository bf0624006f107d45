package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogSinkMasksSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Emit(Event{
		Kind:    EventBackendAttempt,
		Backend: "openai",
		Message: "attempting backend",
		Fields: map[string]any{
			"api_key":        "sk-super-secret",
			"Authorization":  "Bearer abc123",
			"openai_api_key": "sk-also-secret",
			"healthy":        true,
		},
	})

	out := buf.String()
	assert.NotContains(t, out, "sk-super-secret")
	assert.NotContains(t, out, "Bearer abc123")
	assert.NotContains(t, out, "sk-also-secret")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "healthy=true")
	assert.Contains(t, out, "backend=openai")
}

func TestNopSinkDiscardsEverything(t *testing.T) {
	var sink NopSink
	sink.Emit(Event{Kind: EventHealthCheck, Message: "ignored"})
}
