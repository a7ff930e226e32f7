package ui

// Message types sent to connected clients. The frontend dispatches on
// the type field.
const (
	MessageTypeStream      = "stream"
	MessageTypeMessage     = "message"
	MessageTypeQuestion    = "question"
	MessageTypeAppFinished = "app_finished"
)

// messageTypeResponse is the one inbound type the server understands:
// a client answering a pending question.
const messageTypeResponse = "response"

// outboundMessage is the envelope broadcast to every connected client.
type outboundMessage struct {
	Type       string            `json:"type"`
	Chunk      string            `json:"chunk,omitempty"`
	Done       bool              `json:"done,omitempty"`
	Message    string            `json:"message,omitempty"`
	QuestionID string            `json:"question_id,omitempty"`
	Question   string            `json:"question,omitempty"`
	Buttons    map[string]string `json:"buttons,omitempty"`
	Default    string            `json:"default,omitempty"`
}

// inboundMessage is a message received from a client.
type inboundMessage struct {
	Type       string `json:"type"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	Button     string `json:"button"`
	Cancelled  bool   `json:"cancelled"`
}

// UserInput is a client's answer to a question.
type UserInput struct {
	Text      string
	Button    string
	Cancelled bool
}
