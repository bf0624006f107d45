// Package fingerprint computes the deterministic request fingerprint used as
// the response cache key.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/claudette-ai/claudette/internal/model"
)

// Compute hashes the output-affecting fields of a request: the prompt, the
// sorted file contents, and the subset of options that can change the
// answer (model, temperature, max_tokens, forced_backend). Two requests
// that agree on these fields always produce the same fingerprint,
// regardless of file ordering or of options that don't affect output
// (bypass_cache, timeout_ms).
func Compute(req model.Request) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an over-length key, and we pass none.
		panic(fmt.Sprintf("fingerprint: blake2b init: %v", err))
	}

	_, _ = h.Write([]byte("prompt:"))
	_, _ = h.Write([]byte(req.Prompt))

	contents := make([]string, 0, len(req.FileContents))
	for _, f := range req.FileContents {
		if f.ReadError != nil {
			continue
		}
		contents = append(contents, f.Path+"\x00"+f.Content)
	}
	sort.Strings(contents)
	for _, c := range contents {
		_, _ = h.Write([]byte("file:"))
		_, _ = h.Write([]byte(c))
	}

	opts := req.Options
	_, _ = h.Write([]byte("model:" + opts.Model))
	_, _ = h.Write([]byte("forced:" + opts.ForcedBackend))
	_, _ = h.Write([]byte("max_tokens:" + strconv.Itoa(opts.MaxTokens)))
	if opts.Temperature != nil {
		_, _ = h.Write([]byte("temp:" + strconv.FormatFloat(*opts.Temperature, 'f', -1, 64)))
	} else {
		_, _ = h.Write([]byte("temp:unset"))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// PromptHash hashes only the prompt text, used for the ledger's prompt_hash
// column where full fingerprint reproducibility isn't required, just a
// stable per-prompt identifier for aggregation.
func PromptHash(prompt string) string {
	sum := blake2b.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
