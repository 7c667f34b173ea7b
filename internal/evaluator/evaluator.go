package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/dgallion1/clearpath/internal/embed"
)

// Flag names, reported in this order.
const (
	FlagNoContext    = "no_context"
	FlagRefusal      = "refusal"
	FlagLowGrounding = "low_grounding"
)

// DefaultRefusalPattern matches common ways a model declines to answer.
const DefaultRefusalPattern = `(I don'?t have|not mentioned|cannot find|no information|` +
	`I'?m unable|not available in the provided|I couldn'?t find|` +
	`does not (contain|mention|provide|include)|` +
	`no relevant (information|data|context)|` +
	`beyond the scope|outside (of )?the (provided|available)|` +
	`isn'?t covered|not covered|I don'?t know|` +
	`unable to (find|locate|determine)|` +
	`the (documents?|context) (does|do) not)`

const minUngroundedAnswerLen = 20

// Evaluator flags answers that look untrustworthy. It never changes the
// answer.
type Evaluator struct {
	embedder  embed.Embedder
	refusal   *regexp.Regexp
	threshold float64
	log       *slog.Logger
}

// New returns an Evaluator. An empty refusalPattern selects the default.
func New(e embed.Embedder, refusalPattern string, threshold float64, log *slog.Logger) (*Evaluator, error) {
	if refusalPattern == "" {
		refusalPattern = DefaultRefusalPattern
	}
	re, err := regexp.Compile("(?i)" + refusalPattern)
	if err != nil {
		return nil, fmt.Errorf("compile refusal pattern: %w", err)
	}
	return &Evaluator{embedder: e, refusal: re, threshold: threshold, log: log}, nil
}

// IsRefusal reports whether answer declines to answer.
func (ev *Evaluator) IsRefusal(answer string) bool {
	return ev.refusal.MatchString(answer)
}

// Evaluate returns the flags raised for answer given the retrieved results.
// The returned slice is never nil.
func (ev *Evaluator) Evaluate(ctx context.Context, answer string, results []document.Result) []string {
	flags := []string{}
	refusal := ev.IsRefusal(answer)

	if len(results) == 0 && !refusal && len(strings.TrimSpace(answer)) > minUngroundedAnswerLen {
		flags = append(flags, FlagNoContext)
	}
	if refusal {
		flags = append(flags, FlagRefusal)
	}
	if len(results) > 0 && !refusal && ev.lowGrounding(ctx, answer, results) {
		flags = append(flags, FlagLowGrounding)
	}

	if len(flags) > 0 {
		ev.log.Info("evaluator flags", "flags", flags)
	}
	return flags
}

// lowGrounding compares the answer with the space-joined context. Embedding
// failures are logged and count as grounded.
func (ev *Evaluator) lowGrounding(ctx context.Context, answer string, results []document.Result) bool {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	combined := strings.Join(texts, " ")

	vecs, err := ev.embedder.Embed(ctx, []string{answer, combined})
	if err != nil || len(vecs) != 2 {
		ev.log.Error("grounding check failed", "error", err)
		return false
	}

	sim := embed.Dot(vecs[0], vecs[1])
	ev.log.Debug("grounding similarity", "similarity", sim, "threshold", ev.threshold)
	return sim < ev.threshold
}
