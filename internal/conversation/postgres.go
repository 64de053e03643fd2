package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/resume-editor/internal/db"
)

// TurnDB is the part of the database layer the postgres store needs.
type TurnDB interface {
	AppendTurns(ctx context.Context, conversationID uuid.UUID, turns []db.ConversationTurn) error
	ListTurns(ctx context.Context, conversationID uuid.UUID) ([]db.ConversationTurn, error)
}

// PostgresStore keeps conversations in the conversation_turns table. IDs must
// be UUIDs.
type PostgresStore struct {
	db TurnDB
}

// NewPostgresStore wraps a database handle.
func NewPostgresStore(database TurnDB) *PostgresStore {
	return &PostgresStore{db: database}
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}
	return parsed, nil
}

func (s *PostgresStore) Append(ctx context.Context, id string, turns ...Turn) error {
	convID, err := parseID(id)
	if err != nil {
		return err
	}
	rows := make([]db.ConversationTurn, 0, len(turns))
	for _, t := range turns {
		rows = append(rows, db.ConversationTurn{
			ConversationID: convID,
			Role:           t.Role,
			Content:        t.Content,
			CreatedAt:      t.CreatedAt,
		})
	}
	return s.db.AppendTurns(ctx, convID, rows)
}

func (s *PostgresStore) List(ctx context.Context, id string) ([]Turn, error) {
	convID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.ListTurns(ctx, convID)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, Turn{Role: r.Role, Content: r.Content, CreatedAt: r.CreatedAt})
	}
	return turns, nil
}

var _ Store = (*PostgresStore)(nil)
