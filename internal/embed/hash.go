package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"
)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"it": true, "be": true, "as": true, "at": true, "by": true, "with": true,
}

// HashEmbedder maps words and character trigrams into a fixed number of
// buckets with FNV hashing. It needs no model or network and is
// deterministic, which makes it the default for offline use and tests.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) Dimensions() int   { return e.dims }
func (e *HashEmbedder) ModelName() string { return "hash" }

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	lower := strings.ToLower(text)

	for _, w := range wordRe.FindAllString(lower, -1) {
		if stopWords[w] {
			continue
		}
		v[e.bucket(w)] += tokenWeight
	}

	compact := []rune(compactLetters(lower))
	for i := 0; i+ngramSize <= len(compact); i++ {
		v[e.bucket(string(compact[i:i+ngramSize]))] += ngramWeight
	}
	return Normalize(v)
}

func (e *HashEmbedder) bucket(s string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(e.dims))
}

func compactLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
