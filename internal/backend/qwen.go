package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
)

// QwenBackend calls a Qwen-compatible chat completions endpoint (e.g.
// DashScope's OpenAI-compatible mode). The wire format matches OpenAI's
// chat completions closely enough that this adapter is a thin variant of
// OpenAIBackend rather than a full reimplementation, but it stays a
// distinct type so its auth and availability-check quirks (DashScope
// returns 404, not 200, for a bare GET /models on some regions) don't leak
// into the OpenAI adapter.
type QwenBackend struct {
	descriptor model.BackendDescriptor
	apiKey     string
	httpClient *http.Client
}

// NewQwenBackend builds an adapter for descriptor.
func NewQwenBackend(descriptor model.BackendDescriptor, apiKey string) *QwenBackend {
	return &QwenBackend{
		descriptor: descriptor,
		apiKey:     apiKey,
		httpClient: newHTTPClient(60 * time.Second),
	}
}

func (b *QwenBackend) Name() string                       { return b.descriptor.Name }
func (b *QwenBackend) Descriptor() model.BackendDescriptor { return b.descriptor }
func (b *QwenBackend) LatencyScore() float64               { return b.descriptor.Capability.AvgLatency }
func (b *QwenBackend) EstimateCost(tokenCount int) float64 {
	return model.Round6(b.descriptor.CostPer1KTokens * float64(tokenCount) / 1000)
}

func (b *QwenBackend) IsAvailable(ctx context.Context, deadline time.Time) bool {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.descriptor.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	// Some deployments 404 the bare models list but still serve completions.
	return resp.StatusCode < 500 && resp.StatusCode != http.StatusUnauthorized
}

func (b *QwenBackend) Send(ctx context.Context, req model.Request, deadline time.Time) (model.Response, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	modelName := req.Options.Model
	if modelName == "" {
		modelName = b.descriptor.Model
	}

	prompt := buildPrompt(req)
	body := openAIChatRequest{
		Model:       modelName,
		Messages:    []openAIChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return model.Response{}, model.NewError(model.ErrFatal, b.Name(), fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.descriptor.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return model.Response{}, model.NewError(model.ErrFatal, b.Name(), fmt.Sprintf("create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return model.Response{}, model.NewError(model.ErrTimeout, b.Name(), "request deadline exceeded")
		}
		return model.Response{}, model.NewError(model.ErrTransient, b.Name(), fmt.Sprintf("send request: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb openAIErrorBody
		msg := string(raw)
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		errOut := model.NewError(classifyHTTPStatus(resp.StatusCode), b.Name(), msg)
		return model.Response{}, errOut
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Response{}, model.NewError(model.ErrTransient, b.Name(), fmt.Sprintf("decode response: %v", err))
	}
	if len(parsed.Choices) == 0 {
		return model.Response{}, model.NewError(model.ErrTransient, b.Name(), "empty choices in response")
	}

	content := parsed.Choices[0].Message.Content
	tokensIn := parsed.Usage.PromptTokens
	tokensOut := parsed.Usage.CompletionTokens
	if tokensIn == 0 {
		tokensIn = estimateTokensFromChars(len(prompt))
	}
	if tokensOut == 0 {
		tokensOut = estimateTokensFromChars(len(content))
	}

	return model.Response{
		Content:      content,
		BackendUsed:  b.Name(),
		CostEUR:      b.EstimateCost(tokensIn + tokensOut),
		LatencyMS:    time.Since(start).Milliseconds(),
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
	}, nil
}
