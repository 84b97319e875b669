package metrics

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/relayforge/claude-gateway/internal/config"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of a serialized request.
// Uses the cl100k_base encoding when available; falls back to the
// chars-per-token ratio when the tokenizer cannot be initialized
// (e.g. no cached BPE data in an offline environment).
func EstimateTokens(body []byte) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(string(body), nil, nil))
	}
	return len(body) / config.TokenEstimateRatio
}
