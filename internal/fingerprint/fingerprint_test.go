package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/claudette-ai/claudette/internal/model"
)

func TestComputeIsStableAcrossFileOrdering(t *testing.T) {
	a := model.Request{
		Prompt: "hello",
		FileContents: []model.FileContent{
			{Path: "a.txt", Content: "aaa"},
			{Path: "b.txt", Content: "bbb"},
		},
	}
	b := model.Request{
		Prompt: "hello",
		FileContents: []model.FileContent{
			{Path: "b.txt", Content: "bbb"},
			{Path: "a.txt", Content: "aaa"},
		},
	}
	assert.Equal(t, Compute(a), Compute(b))
}

func TestComputeIgnoresNonOutputOptions(t *testing.T) {
	base := model.Request{Prompt: "hello"}
	withIrrelevant := model.Request{
		Prompt:  "hello",
		Options: model.Options{BypassCache: true, TimeoutMS: 5000},
	}
	assert.Equal(t, Compute(base), Compute(withIrrelevant))
}

func TestComputeChangesWithOutputAffectingOptions(t *testing.T) {
	base := Compute(model.Request{Prompt: "hello"})

	temp := 0.5
	cases := map[string]model.Request{
		"model":          {Prompt: "hello", Options: model.Options{Model: "gpt-4o"}},
		"forced_backend": {Prompt: "hello", Options: model.Options{ForcedBackend: "openai"}},
		"max_tokens":     {Prompt: "hello", Options: model.Options{MaxTokens: 100}},
		"temperature":    {Prompt: "hello", Options: model.Options{Temperature: &temp}},
		"prompt":         {Prompt: "goodbye"},
	}
	for name, req := range cases {
		assert.NotEqual(t, base, Compute(req), "changing %s must change the fingerprint", name)
	}
}

func TestComputeSkipsUnreadableFiles(t *testing.T) {
	clean := model.Request{Prompt: "hello"}
	withFailed := model.Request{
		Prompt: "hello",
		FileContents: []model.FileContent{
			{Path: "gone.txt", ReadError: assert.AnError},
		},
	}
	assert.Equal(t, Compute(clean), Compute(withFailed))
}

func TestPromptHashIsDeterministic(t *testing.T) {
	assert.Equal(t, PromptHash("hello"), PromptHash("hello"))
	assert.NotEqual(t, PromptHash("hello"), PromptHash("goodbye"))
}
