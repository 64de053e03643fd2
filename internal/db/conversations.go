package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AppendTurns stores turns for a conversation in a single transaction, in order.
func (db *DB) AppendTurns(ctx context.Context, conversationID uuid.UUID, turns []ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, t := range turns {
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		batch.Queue(
			`INSERT INTO conversation_turns (conversation_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4)`,
			conversationID, t.Role, t.Content, createdAt,
		)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append turns for %s: %w", conversationID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turns for %s: %w", conversationID, err)
	}
	return nil
}

// ListTurns returns a conversation's turns, oldest first.
func (db *DB) ListTurns(ctx context.Context, conversationID uuid.UUID) ([]ConversationTurn, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM conversation_turns
		 WHERE conversation_id = $1
		 ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns for %s: %w", conversationID, err)
	}
	defer rows.Close()

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConversationTurn, error) {
		var t ConversationTurn
		err := row.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan turns for %s: %w", conversationID, err)
	}
	return turns, nil
}

// DeleteConversation removes every turn of a conversation.
func (db *DB) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM conversation_turns WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	return nil
}
