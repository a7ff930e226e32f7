package llm

import "fmt"

// turnSeparator joins the contents of two same-role messages that are
// merged into a single turn.
const turnSeparator = "\n\n"

// Turn is one block of conversational text after normalization.
// Anthropic models only recognize "user" and "assistant" roles and
// require them to alternate, so system messages are folded into the
// user role and adjacent same-role messages are merged.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AdaptMessages normalizes a conversation into alternating user/assistant
// turns. A function-role message is rejected before any other processing,
// since the target models have no function calling. The input is never
// modified; an empty conversation yields no turns.
func AdaptMessages(messages []Message) ([]Turn, error) {
	for _, msg := range messages {
		if msg.Role == RoleFunction {
			return nil, fmt.Errorf("message role %q: %w", msg.Role, ErrUnsupportedRole)
		}
	}

	var turns []Turn
	for _, msg := range messages {
		role := RoleAssistant
		if msg.Role == RoleUser || msg.Role == RoleSystem {
			role = RoleUser
		}

		if len(turns) > 0 && turns[len(turns)-1].Role == role {
			turns[len(turns)-1].Content += turnSeparator + msg.Content
			continue
		}

		turns = append(turns, Turn{Role: role, Content: msg.Content})
	}

	return turns, nil
}
