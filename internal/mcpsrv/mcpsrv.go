// Package mcpsrv exposes Claudette's dispatch pipeline to MCP-compatible
// agent clients: an optimize tool wrapping Optimize, and a status resource
// wrapping GetStatus. Tools and resources are the only capabilities
// served; Claudette has no prompt templates or session history to expose.
package mcpsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const serverInstructions = `You have access to Claudette, an AI-request middleware that picks the best
backend for a prompt, caches responses, and tracks cost.

Call claudette_optimize with a prompt (and optional file paths) to get a
response. Claudette handles backend selection, retries, and caching
itself — you don't need to pick a model unless you want to force one via
the backend argument.

Read the claudette://status resource to see per-backend health, circuit
breaker state, and enabled flag before relying on a particular backend
being available; it does not report cache occupancy.`

// Pipeline is the subset of *claudette.Claudette the MCP server needs.
// Declared as an interface here (rather than importing the root package
// directly) to keep internal/* free of a dependency on the root package,
// preserving the no-cycle import rule.
type Pipeline interface {
	Optimize(ctx context.Context, prompt string, files []string, opts OptimizeOptions) (OptimizeResult, error)
	Status(ctx context.Context) StatusResult
}

// OptimizeOptions mirrors the caller-facing fields of model.Options that
// make sense over MCP (no bypass_cache/bypass_optimization tuning — those
// are CLI power-user flags, not something an agent client should reach
// for by default).
type OptimizeOptions struct {
	ForcedBackend string
	Model         string
}

// OptimizeResult mirrors the response fields worth surfacing to an agent.
type OptimizeResult struct {
	Content      string
	BackendUsed  string
	CostEUR      float64
	LatencyMS    int64
	TokensInput  int
	TokensOutput int
	CacheHit     bool
}

// StatusResult mirrors StatusReport for JSON serialization over the wire.
type StatusResult struct {
	Backends []BackendStatusResult
}

// BackendStatusResult mirrors BackendStatus.
type BackendStatusResult struct {
	Name    string
	Healthy bool
	State   string
	Enabled bool
}

// Server wraps the MCP server with Claudette's pipeline.
type Server struct {
	mcpServer *mcpserver.MCPServer
	pipeline  Pipeline
	logger    *slog.Logger
}

// New creates and configures an MCP server exposing optimize and status.
func New(pipeline Pipeline, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{pipeline: pipeline, logger: logger}

	s.mcpServer = mcpserver.NewMCPServer(
		"claudette",
		version,
		mcpserver.WithResourceCapabilities(true, false),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()
	s.registerResources()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: msg}},
		IsError: true,
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("claudette_optimize",
			mcplib.WithDescription(`Send a prompt through Claudette's dispatch pipeline and get back the
best-available backend's response, with cost and latency metadata.

WHEN TO USE: any time you need to delegate a prompt to an LLM backend
and want Claudette to pick the backend, handle retries across backends,
and cache the answer for identical future requests.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("prompt",
				mcplib.Description("The prompt to send."),
				mcplib.Required(),
			),
			mcplib.WithString("backend",
				mcplib.Description("Optional: force a specific backend by name instead of letting the scorer pick one."),
			),
			mcplib.WithString("model",
				mcplib.Description("Optional: override the chosen backend's default model."),
			),
		),
		s.handleOptimize,
	)
}

func (s *Server) handleOptimize(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	prompt := request.GetString("prompt", "")
	if prompt == "" {
		return errorResult("prompt is required"), nil
	}

	opts := OptimizeOptions{
		ForcedBackend: request.GetString("backend", ""),
		Model:         request.GetString("model", ""),
	}

	result, err := s.pipeline.Optimize(ctx, prompt, nil, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("optimize failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err)), nil
	}

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: string(data)}},
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"claudette://status",
			"Backend Status",
			mcplib.WithResourceDescription("Per-backend health, circuit breaker state, and enabled flag (no cache occupancy)"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatus,
	)
}

func (s *Server) handleStatus(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	status := s.pipeline.Status(ctx)
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpsrv: marshal status: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "claudette://status",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
