package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps messages in process memory. It is what chatd runs with
// when no DATABASE_URL is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]Message
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]Message),
		now:      time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.New()
	if m.MessageType == "" {
		m.MessageType = TypeText
	}
	// microsecond precision matches what the wire format carries
	m.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	conv := s.messages[m.ConversationID]
	if n := len(conv); n > 0 && !m.CreatedAt.After(conv[n-1].CreatedAt) {
		m.CreatedAt = conv[n-1].CreatedAt.Add(time.Microsecond)
	}
	s.messages[m.ConversationID] = append(conv, m)
	return m, nil
}

func (s *MemoryStore) Since(_ context.Context, conversationID string, since *time.Time) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.messages[conversationID]
	out := make([]Message, 0, len(conv))
	for _, m := range conv {
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) Conversations(_ context.Context) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Conversation, 0, len(s.messages))
	for id, conv := range s.messages {
		if len(conv) == 0 {
			continue
		}
		out = append(out, Conversation{ID: id, UpdatedAt: conv[len(conv)-1].CreatedAt, MessageCount: len(conv)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
