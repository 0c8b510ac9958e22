package domain

// Role tags who produced a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. It is the wire shape shared by the
// chat client, the /chat endpoint and the LLM integration.
type Turn struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// Conversation is an ordered sequence of turns; order is conversation order.
type Conversation []Turn

// Clone returns a copy that shares no backing array with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Last returns the final turn, or false when the conversation is empty.
func (c Conversation) Last() (Turn, bool) {
	if len(c) == 0 {
		return Turn{}, false
	}
	return c[len(c)-1], true
}

// ChatRequest is the body posted to /chat.
type ChatRequest struct {
	Messages Conversation `json:"messages"`
}

// ChatResponse is the body returned by /chat. Path names the location the
// generated files are served from.
type ChatResponse struct {
	Response Conversation `json:"response"`
	Path     string       `json:"path"`
}
