package backend

import (
	"net/http"
	"strings"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
)

// sharedTransport is the one connection pool every provider adapter's
// client rides on. Keep-alive and per-host connection limits bound
// resource usage; idle sockets past the idle threshold are reclaimed by
// the transport itself.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	MaxConnsPerHost:     20,
	IdleConnTimeout:     90 * time.Second,
}

// newHTTPClient builds a client over the shared transport with a
// per-adapter overall timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: sharedTransport}
}

// buildPrompt prepends each readable file's content, each prefixed with a
// "File: <path>" header, ahead of the prompt text.
func buildPrompt(req model.Request) string {
	if len(req.FileContents) == 0 {
		return req.Prompt
	}
	var b strings.Builder
	for _, f := range req.FileContents {
		if f.ReadError != nil {
			continue
		}
		b.WriteString("File: ")
		b.WriteString(f.Path)
		b.WriteString("\n")
		b.WriteString(f.Content)
		b.WriteString("\n\n")
	}
	b.WriteString(req.Prompt)
	return b.String()
}

// classifyHTTPStatus maps a provider's HTTP status code to a typed error
// kind, per the Backend contract's typed errors.
func classifyHTTPStatus(status int) model.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return model.ErrRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.ErrAuth
	case status == http.StatusRequestEntityTooLarge:
		return model.ErrContextLength
	case status >= 500:
		return model.ErrTransient
	case status >= 400:
		return model.ErrFatal
	default:
		return model.ErrTransient
	}
}
