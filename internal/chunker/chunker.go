// Package chunker splits note text into token-budgeted, sentence-aligned chunks with a
// trailing-token overlap carried into the next chunk, for per-chunk embedding and search.
//
// Sentence boundaries are approximated with a punctuation/whitespace scanner rather than a
// Unicode segmentation library: no UAX#29 sentence-boundary package is grounded anywhere in
// the example pack, so this package falls back to stdlib string scanning for that one piece
// and documents the gap here instead of inventing a dependency. Token counting still uses a
// real tokenizer (see tokenizer.go) rather than a word-count approximation.
package chunker

import (
	"strings"

	"github.com/steveyegge/elf/internal/config"
)

// Chunk is a contiguous, offset-bounded slice of a note's text, before it is persisted with a
// generated chunk ID.
type Chunk struct {
	ChunkIndex  int32
	StartOffset int
	EndOffset   int
	Text        string
}

// Chunker splits text per a fixed max-token budget and overlap, mirroring elf-chunking's
// split_text/overlap_tail pair.
type Chunker struct {
	maxTokens     uint32
	overlapTokens uint32
	tok           *tokenizer
}

// New builds a Chunker from the configured token budget and overlap. It loads the shared
// tokenizer encoding on first use.
func New(cfg config.Chunking) (*Chunker, error) {
	tok, err := loadTokenizer(cfg.TokenizerRepo)
	if err != nil {
		return nil, err
	}
	return &Chunker{maxTokens: cfg.MaxTokens, overlapTokens: cfg.OverlapTokens, tok: tok}, nil
}

// Split runs the greedy sentence-accumulation algorithm: sentences are appended to the
// current chunk until the running token count exceeds maxTokens, at which point the chunk is
// closed and a trailing overlapTokens-sized tail is carried into the next chunk as its seed.
func (c *Chunker) Split(text string) []Chunk {
	sentences := splitSentenceBoundIndices(text)

	var chunks []Chunk
	var current strings.Builder
	currentStart := 0
	lastEnd := 0
	chunkIndex := int32(0)

	for _, sent := range sentences {
		candidate := current.String() + sent.text
		tokenCount := c.tok.count(candidate)

		if tokenCount > int(c.maxTokens) && current.Len() > 0 {
			chunks = append(chunks, Chunk{
				ChunkIndex:  chunkIndex,
				StartOffset: currentStart,
				EndOffset:   lastEnd,
				Text:        current.String(),
			})
			chunkIndex++

			overlap := c.overlapTail(current.String())
			if lastEnd >= len(overlap) {
				currentStart = lastEnd - len(overlap)
			} else {
				currentStart = 0
			}
			current.Reset()
			current.WriteString(overlap)
		}
		if current.Len() == 0 {
			currentStart = sent.start
		}

		current.WriteString(sent.text)
		lastEnd = sent.start + len(sent.text)
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{
			ChunkIndex:  chunkIndex,
			StartOffset: currentStart,
			EndOffset:   lastEnd,
			Text:        current.String(),
		})
	}

	return chunks
}

func (c *Chunker) overlapTail(text string) string {
	if c.overlapTokens == 0 {
		return ""
	}
	ids := c.tok.encode(text)
	start := len(ids) - int(c.overlapTokens)
	if start < 0 {
		start = 0
	}
	return c.tok.decode(ids[start:])
}

type sentenceSpan struct {
	start int
	text  string
}

// splitSentenceBoundIndices approximates sentence segmentation: a sentence ends after one or
// more of '.', '!', '?' followed by any run of whitespace, which is folded into the ending
// sentence rather than the next one (matching the reference tokenizer's own boundary
// placement on punctuation-then-space text).
func splitSentenceBoundIndices(text string) []sentenceSpan {
	var spans []sentenceSpan
	start := 0
	n := len(text)
	i := 0
	for i < n {
		c := text[i]
		if c == '.' || c == '!' || c == '?' {
			j := i + 1
			for j < n && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
				j++
			}
			for j < n && isASCIISpace(text[j]) {
				j++
			}
			spans = append(spans, sentenceSpan{start: start, text: text[start:j]})
			start = j
			i = j
			continue
		}
		i++
	}
	if start < n {
		spans = append(spans, sentenceSpan{start: start, text: text[start:]})
	}
	return spans
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
