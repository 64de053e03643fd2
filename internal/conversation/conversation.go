// Package conversation stores the turns of editing conversations so follow-up
// instructions can be interpreted against earlier ones.
package conversation

import (
	"context"
	"errors"
	"time"
)

// Roles recorded for turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults for Window, sized to keep the prompt inside the model's context.
const (
	DefaultMaxTurns = 10
	DefaultMaxChars = 32000

	// perTurnOverhead approximates the role header each turn adds to a prompt.
	perTurnOverhead = 50
)

// ErrInvalidID is returned when a conversation ID is malformed for the backend.
var ErrInvalidID = errors.New("invalid conversation id")

// Turn is one message of a conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store appends and lists turns by conversation ID. List returns turns oldest
// first and an empty slice for unknown IDs.
type Store interface {
	Append(ctx context.Context, id string, turns ...Turn) error
	List(ctx context.Context, id string) ([]Turn, error)
}

// Window keeps the newest turns that fit both limits. It keeps at most
// maxTurns turns, then walks from the newest turn backwards and stops at the
// first turn that would push the running size past maxChars. Non-positive
// limits fall back to the defaults.
func Window(turns []Turn, maxTurns, maxChars int) []Turn {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		size := len(turns[i].Content) + perTurnOverhead
		if used+size > maxChars {
			break
		}
		used += size
		start = i
	}

	out := make([]Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}
