package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"00001_daily_spend.sql", "00002_conversation_turns.sql"}, names)

	for _, name := range names {
		data, err := fs.ReadFile(migrationFiles, "migrations/"+name)
		require.NoError(t, err)
		body := string(data)
		assert.True(t, strings.Contains(body, "-- +goose Up"), "%s missing Up section", name)
		assert.True(t, strings.Contains(body, "-- +goose Down"), "%s missing Down section", name)
	}
}

func TestMigrate_NilDatabase(t *testing.T) {
	assert.NoError(t, Migrate(context.Background(), nil, MigrateUp))
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestConversationTurnType(t *testing.T) {
	turn := ConversationTurn{Role: "user", Content: "Make it one page"}

	assert.Equal(t, "user", turn.Role)
	assert.Equal(t, "Make it one page", turn.Content)
	assert.True(t, turn.CreatedAt.IsZero())
}
