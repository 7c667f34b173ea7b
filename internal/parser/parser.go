package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/clearpath/internal/document"
)

// Parser converts raw document bytes into per-page text.
type Parser interface {
	Parse(r io.Reader, filename string) ([]document.Page, error)
}

// Options tunes format-specific parsing.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// pageWriter lays out structured content as page text the paragraph
// extractor understands: paragraphs separated by blank lines, with a section
// heading placed on the first line of the paragraph that follows it.
type pageWriter struct {
	sb             strings.Builder
	pendingHeading string
}

func (w *pageWriter) heading(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	if w.pendingHeading != "" {
		w.flushParagraph(w.pendingHeading)
	}
	w.pendingHeading = title
}

func (w *pageWriter) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if w.pendingHeading != "" {
		text = w.pendingHeading + "\n" + text
		w.pendingHeading = ""
	}
	w.flushParagraph(text)
}

func (w *pageWriter) flushParagraph(text string) {
	if w.sb.Len() > 0 {
		w.sb.WriteString("\n\n")
	}
	w.sb.WriteString(text)
}

// pages returns the accumulated text as a single page of docID.
func (w *pageWriter) pages(docID string) []document.Page {
	if w.pendingHeading != "" {
		w.flushParagraph(w.pendingHeading)
		w.pendingHeading = ""
	}
	text := w.sb.String()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []document.Page{{DocumentID: docID, Number: 1, Text: text}}
}
