package llm

// Message roles accepted in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleFunction  = "function"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Convo is an ordered multi-turn conversation owned by the caller.
// The client only ever reads it; normalization produces fresh turns
// per attempt and never mutates the original messages.
type Convo struct {
	Messages []Message
}

// NewConvo creates an empty conversation.
func NewConvo() *Convo {
	return &Convo{Messages: nil}
}

// User appends a user message and returns the conversation for chaining.
func (c *Convo) User(content string) *Convo {
	return c.append(RoleUser, content)
}

// System appends a system message and returns the conversation for chaining.
func (c *Convo) System(content string) *Convo {
	return c.append(RoleSystem, content)
}

// Assistant appends an assistant message and returns the conversation for chaining.
func (c *Convo) Assistant(content string) *Convo {
	return c.append(RoleAssistant, content)
}

func (c *Convo) append(role, content string) *Convo {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
	return c
}
