package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/clearpath/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	MaxSize int // Maximum chunk length in characters, before overlap.
	Overlap int // Sentences carried over from the previous chunk of the same document.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize: 512,
		Overlap: 3,
	}
}

// Chunk turns extracted blocks into embedding-ready chunks. Oversized blocks
// are packed into sentence groups, each chunk is prefixed with the trailing
// sentences of its predecessor in the same document, and chunk indexes are
// reassigned per document.
func Chunk(blocks []document.Block, cfg Config) []document.Chunk {
	if len(blocks) == 0 {
		return nil
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 512
	}

	chunks := Split(blocks, cfg.MaxSize)
	chunks = Overlap(chunks, cfg.Overlap)
	Reindex(chunks)
	return chunks
}

// Split copies each block into one chunk, or into several when its text is
// longer than maxSize. Sentences are packed greedily and joined with a
// single space; a lone sentence longer than maxSize becomes its own chunk.
func Split(blocks []document.Block, maxSize int) []document.Chunk {
	var out []document.Chunk
	for _, b := range blocks {
		if runeLen(b.Text) <= maxSize {
			out = append(out, document.FromBlock(b, b.Text))
			continue
		}

		var current string
		for _, sent := range splitSentences(b.Text) {
			if current != "" && runeLen(current)+runeLen(sent)+1 > maxSize {
				out = append(out, document.FromBlock(b, strings.TrimSpace(current)))
				current = sent
				continue
			}
			if current == "" {
				current = sent
			} else {
				current = strings.TrimSpace(current + " " + sent)
			}
		}
		if strings.TrimSpace(current) != "" {
			out = append(out, document.FromBlock(b, strings.TrimSpace(current)))
		}
	}
	return out
}

// Overlap prefixes every chunk with the last n sentences of the chunk before
// it when both come from the same document. Sentences are always taken from
// the predecessor's own text, never from an overlap it received.
func Overlap(chunks []document.Chunk, n int) []document.Chunk {
	if len(chunks) == 0 || n <= 0 {
		return chunks
	}

	out := make([]document.Chunk, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		cur, prev := chunks[i], chunks[i-1]
		if cur.Source == prev.Source {
			sentences := splitSentences(prev.Text)
			if len(sentences) > n {
				sentences = sentences[len(sentences)-n:]
			}
			if overlap := strings.TrimSpace(strings.Join(sentences, " ")); overlap != "" {
				cur.Text = overlap + " " + cur.Text
			}
		}
		out[i] = cur
	}
	return out
}

// Reindex assigns 0-based contiguous chunk indexes per source document, in
// slice order.
func Reindex(chunks []document.Chunk) {
	next := make(map[string]int)
	for i := range chunks {
		src := chunks[i].Source
		chunks[i].Index = next[src]
		next[src]++
	}
}

// splitSentences splits text at whitespace runs that directly follow a
// '.', '!' or '?'. The terminator stays with its sentence and the separating
// whitespace is dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	var prev rune
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			sentences = append(sentences, text[start:i])
			j := i
			for j < len(text) {
				r2, s2 := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(r2) {
					break
				}
				j += s2
			}
			start = j
			prev = 0
			i = j
			continue
		}
		prev = r
		i += size
	}
	sentences = append(sentences, text[start:])
	return sentences
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
