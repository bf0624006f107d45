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

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint. The
// same adapter also serves any provider that mirrors the OpenAI wire format
// (most hosted chat APIs do).
type OpenAIBackend struct {
	descriptor model.BackendDescriptor
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIBackend builds an adapter for descriptor, resolving its API key
// from apiKey (already looked up from the env var named by
// descriptor.APIKeyRef; this package never reads environment variables
// itself).
func NewOpenAIBackend(descriptor model.BackendDescriptor, apiKey string) *OpenAIBackend {
	return &OpenAIBackend{
		descriptor: descriptor,
		apiKey:     apiKey,
		httpClient: newHTTPClient(60 * time.Second),
	}
}

func (b *OpenAIBackend) Name() string                          { return b.descriptor.Name }
func (b *OpenAIBackend) Descriptor() model.BackendDescriptor    { return b.descriptor }
func (b *OpenAIBackend) LatencyScore() float64                 { return b.descriptor.Capability.AvgLatency }
func (b *OpenAIBackend) EstimateCost(tokenCount int) float64 {
	return model.Round6(b.descriptor.CostPer1KTokens * float64(tokenCount) / 1000)
}

func (b *OpenAIBackend) IsAvailable(ctx context.Context, deadline time.Time) bool {
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
	return resp.StatusCode < 500
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (b *OpenAIBackend) Send(ctx context.Context, req model.Request, deadline time.Time) (model.Response, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	modelName := req.Options.Model
	if modelName == "" {
		modelName = b.descriptor.Model
	}

	body := openAIChatRequest{
		Model:       modelName,
		Messages:    []openAIChatMessage{{Role: "user", Content: buildPrompt(req)}},
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
		kind := classifyHTTPStatus(resp.StatusCode)
		errOut := model.NewError(kind, b.Name(), msg)
		if kind == model.ErrRateLimit {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				fmt.Sscanf(ra, "%d", &errOut.RetryAfter)
			}
		}
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
		tokensIn = estimateTokensFromChars(len(body.Messages[0].Content))
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
