package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Refund Policy", true},
		{"BILLING & PAYMENTS", true},
		{"Section 3: Account Setup", true},
		{"How To Reset Your Password", true},
		{"This is a sentence.", false},
		{"Is this a question?", false},
		{"", false},
		{"   ", false},
		{"lowercase start heading", false},
		{strings.Repeat("A", 101), false},
		{"Pricing, Plans And Billing", true},
		{"Apples, Oranges, Pears, Plums, Grapes, Kiwis, Limes, Figs, Dates, Melons, Berries", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.line))
		})
	}
}

func TestIsTitleCase(t *testing.T) {
	assert.True(t, isTitleCase("Getting Started"))
	assert.True(t, isTitleCase("Step 1 Of 3"))
	assert.False(t, isTitleCase("Getting started"))
	assert.False(t, isTitleCase("GEtting"))
	assert.False(t, isTitleCase("123 456"))
}

func TestSplitParagraphs_BlankLines(t *testing.T) {
	parts := SplitParagraphs("First paragraph.\n\nSecond paragraph.\n   \nThird.")
	require.Len(t, parts, 3)
	assert.Equal(t, "First paragraph.", parts[0])
	assert.Equal(t, "Third.", parts[2])
}

func TestSplitParagraphs_SingleNewlineFallback(t *testing.T) {
	text := "Overview\nthe product ships with\ntwo plans.\ncontact us at\nsupport"
	parts := SplitParagraphs(text)
	require.Len(t, parts, 3)
	assert.Equal(t, "Overview", parts[0])
	assert.Equal(t, "the product ships with\ntwo plans.", parts[1])
	assert.Equal(t, "contact us at\nsupport", parts[2])
}

func TestExtractBlocks_HeadingCarriesAcrossPages(t *testing.T) {
	pages := []document.Page{
		{DocumentID: "guide.pdf", Number: 1, Text: "Refund Policy\n\nRefunds are issued within 30 days."},
		{DocumentID: "guide.pdf", Number: 2, Text: "Refunds go to the original payment method."},
		{DocumentID: "guide.pdf", Number: 3, Text: "   \n  "},
		{DocumentID: "faq.pdf", Number: 1, Text: "Plain answer text without heading."},
	}

	blocks, err := ExtractBlocks(pages)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.Equal(t, "Refund Policy", blocks[0].Heading)
	assert.Equal(t, 0, blocks[0].Index)
	assert.Equal(t, "Refund Policy", blocks[1].Heading)
	assert.Equal(t, 1, blocks[1].Index)

	assert.Equal(t, 2, blocks[2].Page)
	assert.Equal(t, "Refund Policy", blocks[2].Heading)
	assert.Equal(t, 2, blocks[2].Index)

	assert.Equal(t, "faq.pdf", blocks[3].Source)
	assert.Equal(t, "", blocks[3].Heading)
	assert.Equal(t, 0, blocks[3].Index)
}

func TestExtractBlocks_EmptyInput(t *testing.T) {
	blocks, err := ExtractBlocks(nil)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestExtractBlocks_TextIsTrimmed(t *testing.T) {
	blocks, err := ExtractBlocks([]document.Page{
		{DocumentID: "a.txt", Number: 1, Text: "  padded text here.  \n\n\n  next one.  "},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "padded text here.", blocks[0].Text)
	assert.Equal(t, "next one.", blocks[1].Text)
}
