package claudette

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claudette-ai/claudette/internal/mcpsrv"
)

// pipelineAdapter satisfies mcpsrv.Pipeline by delegating to a Claudette
// instance, translating between the MCP server's transport-friendly
// option/result shapes and the library's own model types.
type pipelineAdapter struct {
	c *Claudette
}

func (a pipelineAdapter) Optimize(ctx context.Context, prompt string, files []string, opts mcpsrv.OptimizeOptions) (mcpsrv.OptimizeResult, error) {
	resp, err := a.c.Optimize(ctx, prompt, files, Options{ForcedBackend: opts.ForcedBackend, Model: opts.Model})
	if err != nil {
		return mcpsrv.OptimizeResult{}, err
	}
	return mcpsrv.OptimizeResult{
		Content:      resp.Content,
		BackendUsed:  resp.BackendUsed,
		CostEUR:      resp.CostEUR,
		LatencyMS:    resp.LatencyMS,
		TokensInput:  resp.TokensInput,
		TokensOutput: resp.TokensOutput,
		CacheHit:     resp.CacheHit,
	}, nil
}

func (a pipelineAdapter) Status(ctx context.Context) mcpsrv.StatusResult {
	status := a.c.GetStatus()
	out := mcpsrv.StatusResult{Backends: make([]mcpsrv.BackendStatusResult, 0, len(status.Backends))}
	for _, b := range status.Backends {
		out.Backends = append(out.Backends, mcpsrv.BackendStatusResult{
			Name:    b.Name,
			Healthy: b.Healthy,
			State:   string(b.Breaker.State),
			Enabled: b.Enabled,
		})
	}
	return out
}

// MCPServer returns the MCP server wrapping this instance's pipeline, or
// nil if WithMCP wasn't passed to New. Callers mount it onto whatever
// transport fits their deployment (stdio, HTTP) via mcp-go's server
// package; Claudette itself only builds the capability, not a transport.
func (c *Claudette) MCPServer() *mcpserver.MCPServer {
	if c.mcp == nil {
		return nil
	}
	return c.mcp.MCPServer()
}
