package batching

import (
	"fmt"

	"github.com/sugarme/tokenizer/pretrained"
)

// TokenEstimator estimates the token count of a text. Implementations must
// be deterministic and monotonic in input length; exact parity with the
// provider's tokenizer only affects packing efficiency, not correctness.
type TokenEstimator func(text string) int

// HeuristicEstimator approximates tokens as ceil(utf8 bytes / 4).
func HeuristicEstimator(text string) int {
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// NewTokenizerEstimator loads a HuggingFace tokenizer.json and counts real
// token ids. Falls back to HeuristicEstimator per call if encoding fails.
func NewTokenizerEstimator(path string) (TokenEstimator, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", path, err)
	}
	return func(text string) int {
		en, err := tk.EncodeSingle(text)
		if err != nil || en == nil {
			return HeuristicEstimator(text)
		}
		n := len(en.GetIds())
		if n < 1 {
			n = 1
		}
		return n
	}, nil
}
