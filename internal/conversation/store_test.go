package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores runs fn against every Store implementation.
func stores(t *testing.T, maxHistory int, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(maxHistory))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "conv.db"), maxHistory)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestNewID(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^conv_[0-9a-f]{12}$`), NewID())
	assert.NotEqual(t, NewID(), NewID())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "short", Title("short"))
	long := strings.Repeat("é", 60)
	assert.Equal(t, strings.Repeat("é", 50)+"…", Title(long))
	assert.Equal(t, strings.Repeat("a", 50), Title(strings.Repeat("a", 50)))
}

func TestStore_EnsureAndAppend(t *testing.T) {
	stores(t, 10, func(t *testing.T, s Store) {
		ctx := context.Background()

		id, err := s.Ensure(ctx, "")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "conv_"))

		same, err := s.Ensure(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, same)

		custom, err := s.Ensure(ctx, "my-chat")
		require.NoError(t, err)
		assert.Equal(t, "my-chat", custom)

		meta := json.RawMessage(`{"model_used":"small"}`)
		sources := []document.Source{{Document: "a.pdf", Page: 2, RelevanceScore: 0.9}}
		require.NoError(t, s.Append(ctx, id, Message{Role: RoleUser, Content: "What is the refund window?"}))
		require.NoError(t, s.Append(ctx, id, Message{Role: RoleAssistant, Content: "30 days.", Sources: sources, Metadata: meta}))

		msgs, ok, err := s.Messages(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		assert.Equal(t, sources, msgs[1].Sources)
		assert.JSONEq(t, string(meta), string(msgs[1].Metadata))

		recent, err := s.RecentForModel(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []Message{
			{Role: RoleUser, Content: "What is the refund window?"},
			{Role: RoleAssistant, Content: "30 days."},
		}, recent)
	})
}

func TestStore_SlidingWindow(t *testing.T) {
	stores(t, 4, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Ensure(ctx, "")
		require.NoError(t, err)

		for i := 0; i < 7; i++ {
			role := RoleUser
			if i%2 == 1 {
				role = RoleAssistant
			}
			require.NoError(t, s.Append(ctx, id, Message{Role: role, Content: fmt.Sprintf("m%d", i)}))
		}

		msgs, _, err := s.Messages(ctx, id)
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "m3", msgs[0].Content)
		assert.Equal(t, "m6", msgs[3].Content)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "m0", list[0].Title, "title comes from the first user message even after trimming")
		assert.Equal(t, 4, list[0].MessageCount)
	})
}

func TestStore_OddWindowKeepsWholeTurns(t *testing.T) {
	stores(t, 5, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Ensure(ctx, "")
		require.NoError(t, err)

		for i := 0; i < 6; i++ {
			role := RoleUser
			if i%2 == 1 {
				role = RoleAssistant
			}
			require.NoError(t, s.Append(ctx, id, Message{Role: role, Content: fmt.Sprintf("m%d", i)}))
		}

		history, err := s.RecentForModel(ctx, id)
		require.NoError(t, err)
		require.Len(t, history, 4)
		assert.Equal(t, RoleUser, history[0].Role)
		assert.Equal(t, "m2", history[0].Content)
	})
}

func TestWindowSize(t *testing.T) {
	assert.Equal(t, 10, windowSize(0))
	assert.Equal(t, 10, windowSize(11))
	assert.Equal(t, 4, windowSize(5))
	assert.Equal(t, 2, windowSize(1))
}

func TestStore_ListNewestFirstSkipsEmpty(t *testing.T) {
	stores(t, 10, func(t *testing.T, s Store) {
		ctx := context.Background()
		first, _ := s.Ensure(ctx, "first")
		_, _ = s.Ensure(ctx, "empty")
		second, _ := s.Ensure(ctx, "second")

		require.NoError(t, s.Append(ctx, first, Message{Role: RoleUser, Content: "hello"}))
		require.NoError(t, s.Append(ctx, second, Message{Role: RoleUser, Content: strings.Repeat("x", 70)}))

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "second", list[0].ID)
		assert.Equal(t, strings.Repeat("x", 50)+"…", list[0].Title)
		assert.Equal(t, "first", list[1].ID)
	})
}

func TestStore_ClearAndUnknown(t *testing.T) {
	stores(t, 10, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, ok, err := s.Messages(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)

		recent, err := s.RecentForModel(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, recent)

		id, _ := s.Ensure(ctx, "")
		require.NoError(t, s.Append(ctx, id, Message{Role: RoleUser, Content: "hi"}))
		require.NoError(t, s.Clear(ctx, id))
		require.NoError(t, s.Clear(ctx, id))

		_, ok, err = s.Messages(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, 10)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "c1", Message{Role: RoleUser, Content: "persist me"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, 10)
	require.NoError(t, err)
	defer s.Close()

	msgs, ok, err := s.Messages(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persist me", msgs[0].Content)
}
