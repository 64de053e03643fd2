package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnsOf(contents ...string) []Turn {
	out := make([]Turn, len(contents))
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		out[i] = Turn{Role: role, Content: c}
	}
	return out
}

func TestWindow_KeepsLastTenTurns(t *testing.T) {
	var contents []string
	for i := 0; i < 14; i++ {
		contents = append(contents, fmt.Sprintf("turn %d", i))
	}
	got := Window(turnsOf(contents...), 10, 32000)

	require.Len(t, got, 10)
	assert.Equal(t, "turn 4", got[0].Content)
	assert.Equal(t, "turn 13", got[9].Content)
}

func TestWindow_CharacterBudgetDropsOldest(t *testing.T) {
	big := strings.Repeat("x", 20000)
	got := Window(turnsOf(big, big, "short"), 10, 32000)

	// newest "short" (55) + one big (20050) fit, the next big would exceed
	require.Len(t, got, 2)
	assert.Equal(t, big, got[0].Content)
	assert.Equal(t, "short", got[1].Content)
}

func TestWindow_StopsAtFirstOverflow(t *testing.T) {
	// the middle turn overflows, so even the small oldest turn is dropped
	got := Window(turnsOf("tiny", strings.Repeat("y", 200), "last"), 10, 150)

	require.Len(t, got, 1)
	assert.Equal(t, "last", got[0].Content)
}

func TestWindow_NewestTooLarge(t *testing.T) {
	got := Window(turnsOf(strings.Repeat("z", 100)), 10, 100)
	assert.Empty(t, got)
}

func TestWindow_DefaultsAndNoAliasing(t *testing.T) {
	in := turnsOf("a", "b")
	got := Window(in, 0, 0)
	require.Len(t, got, 2)

	got[0].Content = "changed"
	assert.Equal(t, "a", in[0].Content)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	empty, err := s.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.Append(ctx, "c1", Turn{Role: RoleUser, Content: "hi"}, Turn{Role: RoleAssistant, Content: "[]"}))
	require.NoError(t, s.Append(ctx, "c1", Turn{Role: RoleUser, Content: "again"}))
	require.NoError(t, s.Append(ctx, "c2", Turn{Role: RoleUser, Content: "other"}))

	got, err := s.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "again", got[2].Content)
	assert.False(t, got[0].CreatedAt.IsZero())

	assert.ErrorIs(t, s.Append(ctx, "", Turn{}), ErrInvalidID)
}
