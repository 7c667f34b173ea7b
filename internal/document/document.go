package document

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrEmptyText     = errors.New("text is empty")
	ErrMissingSource = errors.New("source document is required")
	ErrInvalidPage   = errors.New("page number must be >= 1")
	ErrInvalidIndex  = errors.New("index must be >= 0")
)

// Page is one page of raw text yielded by a document source.
type Page struct {
	DocumentID string // File name of the source document
	Number     int    // 1-indexed page number
	Text       string // Raw extracted text (may be empty)
}

// Block is one paragraph-like unit extracted from a page.
type Block struct {
	Text    string `json:"text"`
	Source  string `json:"source_file"`
	Page    int    `json:"page_number"`
	Heading string `json:"section_heading"`
	Index   int    `json:"chunk_index"` // Sequence within the source document
}

// NewBlock validates and returns a Block.
func NewBlock(text, source string, page int, heading string, index int) (Block, error) {
	b := Block{Text: text, Source: source, Page: page, Heading: heading, Index: index}
	if err := validate(b.Text, b.Source, b.Page, b.Index); err != nil {
		return Block{}, err
	}
	return b, nil
}

// Chunk is the unit that gets embedded and retrieved.
type Chunk struct {
	Text    string `json:"text"`
	Source  string `json:"source_file"`
	Page    int    `json:"page_number"`
	Heading string `json:"section_heading"`
	Index   int    `json:"chunk_index"` // Final per-document index, assigned after overlap
}

// NewChunk validates and returns a Chunk.
func NewChunk(text, source string, page int, heading string, index int) (Chunk, error) {
	c := Chunk{Text: text, Source: source, Page: page, Heading: heading, Index: index}
	if err := c.Validate(); err != nil {
		return Chunk{}, err
	}
	return c, nil
}

// Validate checks the required chunk fields. Used on chunks loaded from disk.
func (c Chunk) Validate() error {
	return validate(c.Text, c.Source, c.Page, c.Index)
}

// FromBlock copies every field of b into a chunk carrying text.
func FromBlock(b Block, text string) Chunk {
	return Chunk{
		Text:    text,
		Source:  b.Source,
		Page:    b.Page,
		Heading: b.Heading,
		Index:   b.Index,
	}
}

func validate(text, source string, page, index int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if source == "" {
		return ErrMissingSource
	}
	if page < 1 {
		return ErrInvalidPage
	}
	if index < 0 {
		return ErrInvalidIndex
	}
	return nil
}

// Result pairs a chunk with its cosine similarity to the query.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Source is a deduplicated (document, page) citation.
type Source struct {
	Document       string  `json:"document"`
	Page           int     `json:"page"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Sources collapses results to one citation per (document, page), keeping the
// first occurrence. Results are expected in descending score order, so the
// kept score is the best one for that page.
func Sources(results []Result) []Source {
	type key struct {
		doc  string
		page int
	}
	seen := make(map[key]bool, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		k := key{r.Chunk.Source, r.Chunk.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		sources = append(sources, Source{
			Document:       r.Chunk.Source,
			Page:           r.Chunk.Page,
			RelevanceScore: round4(r.Score),
		})
	}
	return sources
}

// DistinctDocuments counts the source documents represented in results.
func DistinctDocuments(results []Result) int {
	docs := make(map[string]struct{}, len(results))
	for _, r := range results {
		docs[r.Chunk.Source] = struct{}{}
	}
	return len(docs)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
