// Package rag answers questions against the indexed corpus: it retrieves
// context, routes the query to a model tier, generates, evaluates the answer
// and records the turn in the conversation store.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/clearpath/internal/conversation"
	"github.com/dgallion1/clearpath/internal/document"
	"github.com/dgallion1/clearpath/internal/evaluator"
	"github.com/dgallion1/clearpath/internal/llm"
	"github.com/dgallion1/clearpath/internal/prompt"
	"github.com/dgallion1/clearpath/internal/retriever"
	"github.com/dgallion1/clearpath/internal/router"
	"github.com/dgallion1/clearpath/internal/vectorindex"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Tokens reports LLM token usage.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	ModelUsed       string   `json:"model_used"`
	Classification  string   `json:"classification"`
	Tokens          Tokens   `json:"tokens"`
	LatencyMS       int64    `json:"latency_ms"`
	ChunksRetrieved int      `json:"chunks_retrieved"`
	EvaluatorFlags  []string `json:"evaluator_flags"`
}

// Answer is the full result of one question.
type Answer struct {
	Answer         string            `json:"answer"`
	Metadata       Metadata          `json:"metadata"`
	Sources        []document.Source `json:"sources"`
	ConversationID string            `json:"conversation_id"`
}

// Status summarizes the loaded index.
type Status struct {
	IndexLoaded bool `json:"index_loaded"`
	Chunks      int  `json:"chunks_count"`
}

// Deps are the collaborators an Engine needs.
type Deps struct {
	Retriever     *retriever.Retriever
	Router        *router.Router
	Evaluator     *evaluator.Evaluator
	LLM           llm.Client
	Conversations conversation.Store
	TopK          int
	Log           *slog.Logger
}

// Engine owns the current index snapshot and runs queries against it.
// Rebuilds publish a complete new snapshot; queries never see a partial one.
type Engine struct {
	mu   sync.RWMutex
	snap *vectorindex.Stored

	deps Deps
	log  *slog.Logger
}

func New(d Deps) *Engine {
	if d.TopK <= 0 {
		d.TopK = retriever.DefaultTopK
	}
	return &Engine{deps: d, log: d.Log}
}

// Publish swaps in a new index snapshot. A nil snapshot unloads the index.
func (e *Engine) Publish(s *vectorindex.Stored) {
	e.mu.Lock()
	e.snap = s
	e.mu.Unlock()
	if s != nil {
		e.log.Info("index published", "chunks", len(s.Chunks), "kind", s.Manifest.Kind)
	}
}

func (e *Engine) snapshot() (vectorindex.Index, []document.Chunk) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snap == nil {
		return nil, nil
	}
	return e.snap.Index, e.snap.Chunks
}

// Status reports whether an index is loaded and how many chunks it holds.
func (e *Engine) Status() Status {
	idx, chunks := e.snapshot()
	return Status{IndexLoaded: idx != nil, Chunks: len(chunks)}
}

// Conversations exposes the conversation store.
func (e *Engine) Conversations() conversation.Store {
	return e.deps.Conversations
}

// prepared is everything gathered before the LLM call.
type prepared struct {
	start    time.Time
	convID   string
	question string
	results  []document.Result
	decision router.Decision
	req      llm.Request
}

func (e *Engine) prepare(ctx context.Context, question, convID string) (*prepared, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	convID, err := e.deps.Conversations.Ensure(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}

	idx, chunks := e.snapshot()
	results, err := e.deps.Retriever.Retrieve(ctx, question, idx, chunks, e.deps.TopK)
	if err != nil {
		return nil, err
	}

	decision := e.deps.Router.Classify(question)
	decision = e.deps.Router.Upgrade(decision, results)
	e.log.Info("query routed",
		"conversation_id", convID,
		"classification", decision.Classification,
		"score", decision.Score,
		"signals", decision.Signals,
		"model", decision.Model,
		"chunks", len(results),
	)

	history, err := e.deps.Conversations.RecentForModel(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("conversation history: %w", err)
	}
	turns := make([]llm.Message, len(history))
	for i, m := range history {
		turns[i] = llm.Message{Role: m.Role, Content: m.Content}
	}

	return &prepared{
		start:    start,
		convID:   convID,
		question: question,
		results:  results,
		decision: decision,
		req: llm.Request{
			Model:   decision.Model,
			System:  prompt.Build(results),
			History: turns,
			User:    question,
		},
	}, nil
}

// Ask answers question within conversation convID (a new one when empty).
func (e *Engine) Ask(ctx context.Context, question, convID string) (*Answer, error) {
	p, err := e.prepare(ctx, question, convID)
	if err != nil {
		return nil, err
	}
	resp, err := e.deps.LLM.Generate(ctx, p.req)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, p, resp)
}

// AskStream is Ask with onToken called for every generated text delta.
// Evaluation and the conversation update happen once the stream completes;
// a failed stream leaves the conversation untouched.
func (e *Engine) AskStream(ctx context.Context, question, convID string, onToken func(string) error) (*Answer, error) {
	p, err := e.prepare(ctx, question, convID)
	if err != nil {
		return nil, err
	}
	resp, err := e.deps.LLM.Stream(ctx, p.req, onToken)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, p, resp)
}

func (e *Engine) finish(ctx context.Context, p *prepared, resp *llm.Response) (*Answer, error) {
	flags := e.deps.Evaluator.Evaluate(ctx, resp.Text, p.results)
	if len(flags) > 0 {
		e.log.Warn("answer flagged", "conversation_id", p.convID, "flags", flags)
	}

	a := &Answer{
		Answer: resp.Text,
		Metadata: Metadata{
			ModelUsed:       p.decision.Model,
			Classification:  string(p.decision.Classification),
			Tokens:          Tokens{Input: resp.InputTokens, Output: resp.OutputTokens},
			LatencyMS:       time.Since(p.start).Milliseconds(),
			ChunksRetrieved: len(p.results),
			EvaluatorFlags:  flags,
		},
		Sources:        document.Sources(p.results),
		ConversationID: p.convID,
	}

	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	store := e.deps.Conversations
	if err := store.Append(ctx, p.convID, conversation.Message{Role: conversation.RoleUser, Content: p.question}); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	if err := store.Append(ctx, p.convID, conversation.Message{
		Role:     conversation.RoleAssistant,
		Content:  resp.Text,
		Sources:  a.Sources,
		Metadata: meta,
	}); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return a, nil
}
