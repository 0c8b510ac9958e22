package chat

import (
	"sync"

	"pagesmith/internal/domain"
)

// DefaultSystemPrompt opens every new conversation.
const DefaultSystemPrompt = "As a helpful assistant, you will write clean, well-organized, and easy-to-understand front-end code. " +
	"The code should be written in json format. The key is the filename and the value is the content of the file."

// Session owns the conversation for the lifetime of one chat client. Only the
// Handler writes to it; readers get copies.
type Session struct {
	mu   sync.RWMutex
	conv domain.Conversation
}

// NewSession starts a conversation with a single system turn. An empty prompt
// falls back to DefaultSystemPrompt.
func NewSession(systemPrompt string) *Session {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Session{
		conv: domain.Conversation{{Role: domain.RoleSystem, Content: systemPrompt}},
	}
}

// Snapshot returns a copy of the current conversation.
func (s *Session) Snapshot() domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.Clone()
}

// Len returns the number of turns in the conversation.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conv)
}

func (s *Session) append(t domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = append(s.conv, t)
}

// replace swaps the whole conversation; the server's copy is authoritative.
func (s *Session) replace(c domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = c.Clone()
}
