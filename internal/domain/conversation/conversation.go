package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser is the shopper.
	RoleUser Role = "user"
	// RoleAssistant is the generated answer.
	RoleAssistant Role = "assistant"
)

// NoAnswerMarker is recorded as the assistant turn when no answer could be generated.
const NoAnswerMarker = "[no answer]"

// Turn is one message of a session transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the given time.
func NewTurn(role Role, text string, at time.Time) (Turn, error) {
	switch role {
	case RoleUser, RoleAssistant:
	default:
		return Turn{}, fmt.Errorf("unknown role %q", role)
	}
	return Turn{Role: role, Text: text, Timestamp: at.UTC()}, nil
}

// Exchange returns the user/assistant pair recorded after a search.
// A nil answer is stored as NoAnswerMarker.
func Exchange(question string, answer *string, at time.Time) []Turn {
	reply := NoAnswerMarker
	if answer != nil {
		reply = *answer
	}
	at = at.UTC()
	return []Turn{
		{Role: RoleUser, Text: question, Timestamp: at},
		{Role: RoleAssistant, Text: reply, Timestamp: at},
	}
}

// Last returns at most n trailing turns.
func Last(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// Transcript renders turns as "role: text" lines, oldest first.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
