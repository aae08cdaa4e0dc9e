package chat

import (
	"errors"
	"fmt"
)

// Append failures. The message is not added.
var (
	ErrUnknownRole     = errors.New("unknown message role")
	ErrUnpairedToolMsg = errors.New("tool message answers no pending tool call")
)

// Transcript is the ordered, append-only message history for one request.
// Every tool message answers exactly one earlier assistant tool call.
type Transcript struct {
	messages []Message
	pending  map[string]bool // tool call IDs awaiting a tool message
}

// NewTranscript starts a transcript with the given messages. Messages that
// Append would reject are dropped.
func NewTranscript(initial ...Message) *Transcript {
	t := &Transcript{pending: make(map[string]bool)}
	for i := range initial {
		_ = t.Append(initial[i])
	}
	return t
}

// Append adds m to the transcript. Assistant tool calls become pending
// until answered by a tool message carrying the same ID.
func (t *Transcript) Append(m Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, m.Role)
	}
	switch m.Role {
	case RoleAssistant:
		for _, tc := range m.ToolCalls {
			t.pending[tc.ID] = true
		}
	case RoleTool:
		if !t.IsPending(m.ToolCallID) {
			return fmt.Errorf("%w: %q", ErrUnpairedToolMsg, m.ToolCallID)
		}
		delete(t.pending, m.ToolCallID)
	}
	t.messages = append(t.messages, m)
	return nil
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int { return len(t.messages) }

// IsPending reports whether the tool call with the given ID has not been answered.
func (t *Transcript) IsPending(toolCallID string) bool { return t.pending[toolCallID] }

// PendingCount returns the number of unanswered tool calls.
func (t *Transcript) PendingCount() int { return len(t.pending) }
