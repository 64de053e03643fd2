package db

import (
	"time"

	"github.com/google/uuid"
)

// ConversationTurn is one stored message of an editing conversation.
type ConversationTurn struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
