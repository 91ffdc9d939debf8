package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// tokenizer wraps the shared tiktoken encoding used for both the accumulation loop's token
// count and the overlap tail's encode/decode round-trip.
//
// elf-chunking loads a Hugging Face tokenizer named by config (e.g. "Qwen/Qwen3-Embedding-8B").
// No HF-compatible tokenizer is grounded in the example pack, so this substitutes tiktoken-go's
// cl100k_base encoding: the configured tokenizer_repo is kept in config for documentation/
// compatibility but is not resolved to a specific vocabulary here.
type tokenizer struct {
	enc *tiktoken.Tiktoken
}

func loadTokenizer(_ string) (*tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("chunker: load tokenizer: %w", err)
	}
	return &tokenizer{enc: enc}, nil
}

func (t *tokenizer) count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tokenizer) encode(text string) []int {
	if text == "" {
		return nil
	}
	return t.enc.Encode(text, nil, nil)
}

func (t *tokenizer) decode(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	return t.enc.Decode(ids)
}
