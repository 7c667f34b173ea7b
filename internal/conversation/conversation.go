// Package conversation keeps per-conversation message history with a
// sliding window applied on every append.
package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/clearpath/internal/document"
	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle names a conversation until its first user message.
const DefaultTitle = "New conversation"

const (
	titleMaxRunes     = 50
	defaultMaxHistory = 10
)

// windowSize rounds maxHistory down to whole user/assistant pairs, keeping
// at least one pair.
func windowSize(maxHistory int) int {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return max(2, maxHistory/2*2)
}

// Message is one stored turn. Assistant turns carry the sources and
// response metadata so a client can replay them.
type Message struct {
	Role     string            `json:"role"`
	Content  string            `json:"content"`
	Sources  []document.Source `json:"sources,omitempty"`
	Metadata json.RawMessage   `json:"metadata,omitempty"`
}

// Summary describes a conversation in listings.
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
}

// Store persists conversations.
type Store interface {
	// Ensure returns id, registering it if unknown. An empty id gets a
	// freshly generated one.
	Ensure(ctx context.Context, id string) (string, error)
	// Append adds a message and trims the history to the window.
	Append(ctx context.Context, id string, msg Message) error
	// RecentForModel returns the windowed history as role and content only.
	RecentForModel(ctx context.Context, id string) ([]Message, error)
	// Messages returns every stored message. ok is false for unknown ids.
	Messages(ctx context.Context, id string) (msgs []Message, ok bool, err error)
	// List returns non-empty conversations, newest first.
	List(ctx context.Context) ([]Summary, error)
	Clear(ctx context.Context, id string) error
	Close() error
}

// NewID returns an id of the form conv_<12 hex chars>.
func NewID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Title derives a conversation title from its first user message.
func Title(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	return string([]rune(content)[:titleMaxRunes]) + "…"
}

func stripForModel(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out
}
