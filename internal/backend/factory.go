package backend

import (
	"fmt"

	"github.com/claudette-ai/claudette/internal/model"
)

// New builds a Backend adapter for kind (one of "openai", "anthropic",
// "qwen", "ollama"), using apiKey for providers that need one. This is the
// single place request handling touches to go from static configuration to
// a live adapter; the router never constructs these itself.
func New(kind string, descriptor model.BackendDescriptor, apiKey string) (Backend, error) {
	switch kind {
	case "openai":
		return NewOpenAIBackend(descriptor, apiKey), nil
	case "anthropic":
		return NewAnthropicBackend(descriptor, apiKey), nil
	case "qwen":
		return NewQwenBackend(descriptor, apiKey), nil
	case "ollama":
		return NewOllamaBackend(descriptor), nil
	default:
		return nil, fmt.Errorf("backend: unknown kind %q", kind)
	}
}
