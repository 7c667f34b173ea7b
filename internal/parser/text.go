package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/clearpath/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var pages []document.Page
	for i, page := range strings.Split(text, "\f") {
		pages = append(pages, document.Page{
			DocumentID: filename,
			Number:     i + 1,
			Text:       page,
		})
	}
	if len(pages) == 1 && strings.TrimSpace(pages[0].Text) == "" {
		return nil, nil
	}
	return pages, nil
}
