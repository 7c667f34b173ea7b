package prompt

import (
	"strings"
	"testing"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/stretchr/testify/assert"
)

func TestContext_Empty(t *testing.T) {
	assert.Equal(t, NoContext, Context(nil))
	assert.True(t, strings.HasSuffix(Build(nil), NoContext+"\n"))
}

func TestContext_HeadersAndSeparators(t *testing.T) {
	results := []document.Result{
		{Chunk: document.Chunk{Text: "Refunds take 30 days.", Source: "policy.pdf", Page: 4, Heading: "Refunds"}},
		{Chunk: document.Chunk{Text: "Plans renew yearly.", Source: "pricing.pdf", Page: 1}},
	}

	want := "[Source 1: policy.pdf, Page 4] — Refunds\nRefunds take 30 days." +
		"\n\n---\n\n" +
		"[Source 2: pricing.pdf, Page 1]\nPlans renew yearly."
	assert.Equal(t, want, Context(results))

	p := Build(results)
	assert.True(t, strings.HasPrefix(p, SystemPrompt))
	assert.Contains(t, p, want)
}
