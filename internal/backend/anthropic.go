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

// AnthropicBackend calls the Anthropic messages API.
type AnthropicBackend struct {
	descriptor model.BackendDescriptor
	apiKey     string
	httpClient *http.Client
}

const anthropicVersion = "2023-06-01"

// NewAnthropicBackend builds an adapter for descriptor.
func NewAnthropicBackend(descriptor model.BackendDescriptor, apiKey string) *AnthropicBackend {
	return &AnthropicBackend{
		descriptor: descriptor,
		apiKey:     apiKey,
		httpClient: newHTTPClient(60 * time.Second),
	}
}

func (b *AnthropicBackend) Name() string                       { return b.descriptor.Name }
func (b *AnthropicBackend) Descriptor() model.BackendDescriptor { return b.descriptor }
func (b *AnthropicBackend) LatencyScore() float64               { return b.descriptor.Capability.AvgLatency }
func (b *AnthropicBackend) EstimateCost(tokenCount int) float64 {
	return model.Round6(b.descriptor.CostPer1KTokens * float64(tokenCount) / 1000)
}

func (b *AnthropicBackend) IsAvailable(ctx context.Context, deadline time.Time) bool {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.descriptor.BaseURL+"/messages", bytes.NewReader([]byte(`{"model":"`+b.descriptor.Model+`","max_tokens":1,"messages":[{"role":"user","content":"ping"}]}`)))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	// Any status below 500 other than 401 means the service itself is
	// reachable.
	return resp.StatusCode < 500 && resp.StatusCode != http.StatusUnauthorized
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature *float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *AnthropicBackend) Send(ctx context.Context, req model.Request, deadline time.Time) (model.Response, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	modelName := req.Options.Model
	if modelName == "" {
		modelName = b.descriptor.Model
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	prompt := buildPrompt(req)
	body := anthropicRequest{
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: req.Options.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return model.Response{}, model.NewError(model.ErrFatal, b.Name(), fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.descriptor.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return model.Response{}, model.NewError(model.ErrFatal, b.Name(), fmt.Sprintf("create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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
		var eb anthropicErrorBody
		msg := string(raw)
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		kind := classifyHTTPStatus(resp.StatusCode)
		if eb.Error.Type == "invalid_request_error" && resp.StatusCode == http.StatusBadRequest {
			kind = model.ErrContextLength
		}
		errOut := model.NewError(kind, b.Name(), msg)
		if kind == model.ErrRateLimit {
			if ra := resp.Header.Get("retry-after"); ra != "" {
				fmt.Sscanf(ra, "%d", &errOut.RetryAfter)
			}
		}
		return model.Response{}, errOut
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Response{}, model.NewError(model.ErrTransient, b.Name(), fmt.Sprintf("decode response: %v", err))
	}
	if len(parsed.Content) == 0 {
		return model.Response{}, model.NewError(model.ErrTransient, b.Name(), "empty content in response")
	}

	content := parsed.Content[0].Text
	tokensIn := parsed.Usage.InputTokens
	tokensOut := parsed.Usage.OutputTokens
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
