package model

import "time"

// Options carries the routing preferences a caller may attach to a request.
// Every field is optional; the zero value means "let the router decide."
type Options struct {
	ForcedBackend     string
	Model             string
	MaxTokens         int
	Temperature       *float64 // nil means unset; valid range [0,1]
	BypassCache       bool
	BypassOptimization bool
	TimeoutMS         int
}

// Request is the canonical input to Optimize. Prompt and Files are supplied
// by the caller; FileContents is populated by the orchestrator after reading
// Files from disk.
type Request struct {
	Prompt       string
	Files        []string
	FileContents []FileContent
	Options      Options

	// ReceivedAt anchors latency measurement; set by the orchestrator at
	// the start of Optimize, not by the caller.
	ReceivedAt time.Time

	// RequestID correlates this request's ledger row and log lines; set by
	// the orchestrator, not the caller.
	RequestID string
}

// FileContent is the result of reading one of Request.Files.
type FileContent struct {
	Path    string
	Content string
	// ReadError is set when the file could not be read; the content is then
	// empty and the orchestrator emits a warning instead of aborting unless
	// every file fails.
	ReadError error
}

// EffectiveTimeout returns the request's configured timeout, or the given
// default when unset.
func (r Request) EffectiveTimeout(def time.Duration) time.Duration {
	if r.Options.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(r.Options.TimeoutMS) * time.Millisecond
}

const (
	// MaxPromptBytes bounds Request.Prompt per the input contract.
	MaxPromptBytes = 1 << 20 // 1 MiB
	// MaxFiles bounds how many file paths a single request may attach.
	MaxFiles = 100
)
