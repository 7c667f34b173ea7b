package main

import (
	"bytes"
	"testing"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/dgallion1/clearpath/internal/rag"
	"github.com/stretchr/testify/assert"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "index", "ask"}, names)
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"ask"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestPrintAnswerDetails(t *testing.T) {
	var buf bytes.Buffer
	printAnswerDetails(&buf, &rag.Answer{
		Metadata: rag.Metadata{
			ModelUsed:      "llama-3.1-8b-instant",
			Classification: "simple",
			Tokens:         rag.Tokens{Input: 10, Output: 5},
			EvaluatorFlags: []string{"no_context"},
		},
		Sources:        []document.Source{{Document: "guide.pdf", Page: 3, RelevanceScore: 0.8123}},
		ConversationID: "conv_abc",
	})
	out := buf.String()
	assert.Contains(t, out, "model: llama-3.1-8b-instant (simple)")
	assert.Contains(t, out, "flags: no_context")
	assert.Contains(t, out, "source: guide.pdf p.3 (0.8123)")
	assert.Contains(t, out, "conversation: conv_abc")
}
