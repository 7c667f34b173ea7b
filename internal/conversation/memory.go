package conversation

import (
	"context"
	"sync"
)

type memConversation struct {
	title    string
	messages []Message
}

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu         sync.Mutex
	maxHistory int
	convs      map[string]*memConversation
	order      []string // creation order
}

// NewMemoryStore returns a store keeping the last maxHistory messages per
// conversation, rounded down to an even count.
func NewMemoryStore(maxHistory int) *MemoryStore {
	maxHistory = windowSize(maxHistory)
	return &MemoryStore{
		maxHistory: maxHistory,
		convs:      make(map[string]*memConversation),
	}
}

func (s *MemoryStore) Ensure(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = NewID()
	}
	s.ensureLocked(id)
	return id, nil
}

func (s *MemoryStore) ensureLocked(id string) *memConversation {
	c, ok := s.convs[id]
	if !ok {
		c = &memConversation{title: DefaultTitle}
		s.convs[id] = c
		s.order = append(s.order, id)
	}
	return c
}

func (s *MemoryStore) Append(_ context.Context, id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ensureLocked(id)
	c.messages = append(c.messages, msg)
	if msg.Role == RoleUser && c.title == DefaultTitle {
		c.title = Title(msg.Content)
	}
	if n := len(c.messages); n > s.maxHistory {
		c.messages = append([]Message(nil), c.messages[n-s.maxHistory:]...)
	}
	return nil
}

func (s *MemoryStore) RecentForModel(_ context.Context, id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return []Message{}, nil
	}
	return stripForModel(c.messages), nil
}

func (s *MemoryStore) Messages(_ context.Context, id string) ([]Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, false, nil
	}
	return append([]Message{}, c.messages...), true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Summary{}
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		c := s.convs[id]
		if len(c.messages) == 0 {
			continue
		}
		out = append(out, Summary{ID: id, Title: c.title, MessageCount: len(c.messages)})
	}
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return nil
	}
	delete(s.convs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
