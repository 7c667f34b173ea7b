package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. The whole file is
// one page; ATX/setext headings lead the paragraph that follows them.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var w pageWriter
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			w.heading(extractText(node, src))
		default:
			w.paragraph(extractText(n, src))
		}
	}
	return w.pages(filename), nil
}

// extractText gets the text content of a goldmark AST node. Leaf blocks
// contribute their source lines; container blocks recurse.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(bytes.TrimRight(line.Value(src), "\r\n"))
		}
		return strings.TrimSpace(buf.String())
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var part string
		if t, ok := c.(*ast.Text); ok {
			part = string(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				part += "\n"
			}
		} else {
			part = extractText(c, src)
		}
		if part == "" {
			continue
		}
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(part)
	}
	return strings.TrimSpace(buf.String())
}
