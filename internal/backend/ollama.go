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

// OllamaBackend calls a local Ollama server's chat endpoint. Recommended
// for fully on-premises routing: no external API cost, no data leaving the
// network, generally the fallback-of-last-resort in a candidate ordering.
type OllamaBackend struct {
	descriptor model.BackendDescriptor
	httpClient *http.Client
}

// NewOllamaBackend builds an adapter for descriptor. If descriptor.BaseURL
// is empty, defaults to the standard local Ollama port.
func NewOllamaBackend(descriptor model.BackendDescriptor) *OllamaBackend {
	if descriptor.BaseURL == "" {
		descriptor.BaseURL = "http://localhost:11434"
	}
	return &OllamaBackend{
		descriptor: descriptor,
		httpClient: newHTTPClient(120 * time.Second), // local inference can be slow on CPU
	}
}

func (b *OllamaBackend) Name() string                       { return b.descriptor.Name }
func (b *OllamaBackend) Descriptor() model.BackendDescriptor { return b.descriptor }
func (b *OllamaBackend) LatencyScore() float64               { return b.descriptor.Capability.AvgLatency }

// EstimateCost is always zero: local inference has no per-token price.
func (b *OllamaBackend) EstimateCost(tokenCount int) float64 { return 0 }

func (b *OllamaBackend) IsAvailable(ctx context.Context, deadline time.Time) bool {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.descriptor.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaChatOptions   `json:"options,omitempty"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

func (b *OllamaBackend) Send(ctx context.Context, req model.Request, deadline time.Time) (model.Response, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	modelName := req.Options.Model
	if modelName == "" {
		modelName = b.descriptor.Model
	}

	var opts ollamaChatOptions
	if req.Options.Temperature != nil {
		opts.Temperature = *req.Options.Temperature
	}
	if req.Options.MaxTokens > 0 {
		opts.NumPredict = req.Options.MaxTokens
	}

	prompt := buildPrompt(req)
	body := ollamaChatRequest{
		Model:    modelName,
		Messages: []ollamaChatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  opts,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return model.Response{}, model.NewError(model.ErrFatal, b.Name(), fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.descriptor.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return model.Response{}, model.NewError(model.ErrFatal, b.Name(), fmt.Sprintf("create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return model.Response{}, model.NewError(classifyHTTPStatus(resp.StatusCode), b.Name(), string(raw))
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Response{}, model.NewError(model.ErrTransient, b.Name(), fmt.Sprintf("decode response: %v", err))
	}

	tokensIn := parsed.PromptEvalCount
	tokensOut := parsed.EvalCount
	if tokensIn == 0 {
		tokensIn = estimateTokensFromChars(len(prompt))
	}
	if tokensOut == 0 {
		tokensOut = estimateTokensFromChars(len(parsed.Message.Content))
	}

	return model.Response{
		Content:      parsed.Message.Content,
		BackendUsed:  b.Name(),
		CostEUR:      0,
		LatencyMS:    time.Since(start).Milliseconds(),
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
	}, nil
}
