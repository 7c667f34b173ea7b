package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// stubEmbedder returns answerVec for the first text and contextVec for the
// second.
type stubEmbedder struct {
	answerVec, contextVec []float32
	err                   error
	calls                 int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{s.answerVec, s.contextVec}, nil
}
func (s *stubEmbedder) Dimensions() int   { return 2 }
func (s *stubEmbedder) ModelName() string { return "stub" }

func results(n int) []document.Result {
	out := make([]document.Result, n)
	for i := range out {
		out[i] = document.Result{Chunk: document.Chunk{Text: "context", Source: "a.pdf", Page: 1}}
	}
	return out
}

func newEvaluator(t *testing.T, e *stubEmbedder) *Evaluator {
	t.Helper()
	ev, err := New(e, "", 0.35, discard())
	require.NoError(t, err)
	return ev
}

func TestEvaluate_NoContext(t *testing.T) {
	e := &stubEmbedder{}
	ev := newEvaluator(t, e)

	flags := ev.Evaluate(context.Background(), "The premium plan costs twenty dollars.", nil)
	assert.Equal(t, []string{FlagNoContext}, flags)
	assert.Zero(t, e.calls, "grounding must not run without results")

	assert.Equal(t, []string{}, ev.Evaluate(context.Background(), "Short answer.", nil))
}

func TestEvaluate_RefusalExcludesNoContext(t *testing.T) {
	ev := newEvaluator(t, &stubEmbedder{})
	flags := ev.Evaluate(context.Background(), "I don't have enough information to answer that question.", nil)
	assert.Equal(t, []string{FlagRefusal}, flags)
}

func TestEvaluate_RefusalSkipsGrounding(t *testing.T) {
	e := &stubEmbedder{answerVec: []float32{1, 0}, contextVec: []float32{0, 1}}
	ev := newEvaluator(t, e)

	flags := ev.Evaluate(context.Background(), "The documents do not mention a refund window.", results(2))
	assert.Equal(t, []string{FlagRefusal}, flags)
	assert.Zero(t, e.calls)
}

func TestEvaluate_LowGrounding(t *testing.T) {
	e := &stubEmbedder{answerVec: []float32{1, 0}, contextVec: []float32{0.2, 0.98}}
	ev := newEvaluator(t, e)

	flags := ev.Evaluate(context.Background(), "Totally unrelated answer text here.", results(3))
	assert.Equal(t, []string{FlagLowGrounding}, flags)
	assert.Equal(t, 1, e.calls)
}

func TestEvaluate_Grounded(t *testing.T) {
	e := &stubEmbedder{answerVec: []float32{1, 0}, contextVec: []float32{0.8, 0.6}}
	ev := newEvaluator(t, e)
	assert.Empty(t, ev.Evaluate(context.Background(), "Refunds take 30 days.", results(1)))
}

func TestEvaluate_EmbeddingFailureIsNotFlagged(t *testing.T) {
	e := &stubEmbedder{err: errors.New("boom")}
	ev := newEvaluator(t, e)

	flags := ev.Evaluate(context.Background(), "Some answer that is long enough.", results(1))
	assert.NotNil(t, flags)
	assert.Empty(t, flags)
}

func TestRefusalPatterns(t *testing.T) {
	ev := newEvaluator(t, &stubEmbedder{})
	for _, s := range []string{
		"I dont have that detail.",
		"I couldn't find anything.",
		"That is beyond the scope of these guides.",
		"This is outside of the provided material.",
		"UNABLE TO LOCATE the setting.",
		"The context does not say.",
	} {
		assert.True(t, ev.IsRefusal(s), s)
	}
	assert.False(t, ev.IsRefusal("Refunds are processed within 30 days."))
}

func TestNew_CustomPattern(t *testing.T) {
	ev, err := New(&stubEmbedder{}, `no idea`, 0.35, discard())
	require.NoError(t, err)
	assert.True(t, ev.IsRefusal("No idea, sorry"))
	assert.False(t, ev.IsRefusal("I don't know"))

	_, err = New(&stubEmbedder{}, "(", 0.35, discard())
	assert.Error(t, err)
}
