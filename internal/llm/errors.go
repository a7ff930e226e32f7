package llm

import (
	"errors"
	"fmt"
)

// ErrUnsupportedRole is returned when a conversation contains a message
// role that cannot be mapped onto the user/assistant alternation, e.g.
// function-call messages. It is a caller-input defect and is raised
// before any network activity.
var ErrUnsupportedRole = errors.New("unsupported message role")

// IncompleteStreamError reports a stream that terminated without a
// validly structured final message. It is the only failure kind the
// retry loop acts on; every other error from the transport propagates
// unmodified on first occurrence.
type IncompleteStreamError struct {
	// Attempts is the total number of attempts made, including the
	// first one. Zero when the error comes from a single attempt that
	// has not been through the retry loop yet.
	Attempts int
	// Cause is the underlying validation failure, if any.
	Cause error
}

func (e *IncompleteStreamError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("request failed after %d attempts: %s", e.Attempts, e.causeMessage())
	}
	return fmt.Sprintf("incomplete stream: %s", e.causeMessage())
}

func (e *IncompleteStreamError) Unwrap() error {
	return e.Cause
}

func (e *IncompleteStreamError) causeMessage() string {
	if e.Cause == nil {
		return "no final message received"
	}
	return e.Cause.Error()
}
