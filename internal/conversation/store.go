// Package conversation holds the turn-by-turn message history of a session.
package conversation

import (
	"sync"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one exchange in the conversation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Store is an in-memory conversation history seeded with a persona
// prompt. The persona is always the first message sent to the model
// but never appears in History.
type Store struct {
	mu      sync.RWMutex
	persona string
	maxSize int
	entries []Message
}

// NewStore creates a history capped at maxEntries user/assistant messages.
func NewStore(persona string, maxEntries int) *Store {
	return &Store{
		persona: persona,
		maxSize: maxEntries,
		entries: make([]Message, 0, maxEntries),
	}
}

// Append records a message. Oldest entries are evicted past the cap.
func (s *Store) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// History returns a copy of the user/assistant exchanges.
func (s *Store) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.entries))
	copy(out, s.entries)
	return out
}

// Messages returns the full prompt for the model: the persona system
// message followed by the history.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.entries)+1)
	if s.persona != "" {
		out = append(out, Message{Role: RoleSystem, Content: s.persona})
	}
	out = append(out, s.entries...)
	return out
}

// Len returns the number of stored exchanges, excluding the persona.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear discards the history. The persona survives; clearing an already
// empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}

// Persona returns the system prompt in effect.
func (s *Store) Persona() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// SetPersona replaces the system prompt for subsequent turns.
func (s *Store) SetPersona(persona string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = persona
}
