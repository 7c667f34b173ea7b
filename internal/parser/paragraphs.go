package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/clearpath/internal/document"
)

const maxHeadingLen = 100

// headingRe matches short capitalized lines: a leading capital followed by
// 2-80 letters, digits, spaces or limited punctuation.
var headingRe = regexp.MustCompile(`^(?:[A-Z][A-Za-z0-9 &/\-:–—]{2,80}|[A-Z][A-Z0-9 &/\-:–—]{2,80})$`)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// IsHeading reports whether line looks like a section heading.
func IsHeading(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" || utf8.RuneCountInString(s) > maxHeadingLen {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return false
	}
	if headingRe.MatchString(s) {
		return true
	}
	return isTitleCase(s) && len(strings.Fields(s)) <= 10
}

// isTitleCase reports whether every cased word starts with an upper-case
// letter followed only by lower-case letters, with at least one cased rune.
func isTitleCase(s string) bool {
	cased, prevCased := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased, cased = true, true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased, cased = true, true
		default:
			prevCased = false
		}
	}
	return cased
}

// SplitParagraphs splits page text on blank lines. Text with no blank lines
// is split on single newlines instead, closing a paragraph at each line
// that ends a sentence or looks like a heading.
func SplitParagraphs(text string) []string {
	parts := blankLineRe.Split(text, -1)
	if len(parts) > 1 {
		return parts
	}

	var paragraphs []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		current = append(current, line)
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") ||
			strings.HasSuffix(s, "?") || strings.HasSuffix(s, ":") || IsHeading(s) {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return paragraphs
}

// ExtractBlocks turns pages into paragraph blocks in encounter order. The
// current heading and the sequence index are tracked per document across
// its pages. Whitespace-only pages are skipped.
func ExtractBlocks(pages []document.Page) ([]document.Block, error) {
	headings := make(map[string]string)
	next := make(map[string]int)

	var blocks []document.Block
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, para := range SplitParagraphs(page.Text) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			firstLine, _, _ := strings.Cut(para, "\n")
			if firstLine = strings.TrimSpace(firstLine); IsHeading(firstLine) {
				headings[page.DocumentID] = firstLine
			}

			b, err := document.NewBlock(para, page.DocumentID, page.Number, headings[page.DocumentID], next[page.DocumentID])
			if err != nil {
				return nil, fmt.Errorf("%s page %d: %w", page.DocumentID, page.Number, err)
			}
			blocks = append(blocks, b)
			next[page.DocumentID]++
		}
	}
	return blocks, nil
}
