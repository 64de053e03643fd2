package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type failingStore struct {
	addCalls int
}

func (s *failingStore) Add(context.Context, string, float64) error {
	s.addCalls++
	return errors.New("connection refused")
}

func (s *failingStore) Total(context.Context, string) (float64, error) {
	return 0, errors.New("connection refused")
}

func TestDay_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	local := time.Date(2026, 3, 1, 20, 0, 0, 0, loc)

	assert.Equal(t, "2026-03-02", Day(local))
}

func TestCheckBudget_StrictlyBelowLimit(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	l := New(NewMemoryStore(), Config{Limit: 0.50, Now: clk.Now}, discard)

	assert.True(t, l.CheckBudget(ctx))

	l.AddCost(ctx, 0.25)
	assert.True(t, l.CheckBudget(ctx))

	l.AddCost(ctx, 0.25)
	assert.False(t, l.CheckBudget(ctx), "total equal to the limit exhausts the budget")

	l.AddCost(ctx, 0.25)
	assert.False(t, l.CheckBudget(ctx))
}

func TestCheckBudget_RollsOverAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 5, 4, 23, 59, 0, 0, time.UTC)}
	l := New(NewMemoryStore(), Config{Limit: 0.10, Now: clk.Now}, discard)

	l.AddCost(ctx, 0.10)
	assert.False(t, l.CheckBudget(ctx))

	clk.Set(time.Date(2026, 5, 4, 23, 59, 59, 0, time.UTC))
	assert.False(t, l.CheckBudget(ctx), "still the same day")

	clk.Set(time.Date(2026, 5, 5, 0, 0, 1, 0, time.UTC))
	assert.True(t, l.CheckBudget(ctx))
	assert.Equal(t, "2026-05-05", l.Today())
}

func TestAddCost_MonotonicWithinDay(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	l := New(NewMemoryStore(), Config{Limit: 1, Now: clk.Now}, discard)

	previous := 0.0
	for _, amount := range []float64{0.1, 0, -0.5, 0.2, 0.00005} {
		l.AddCost(ctx, amount)
		status, err := l.Status(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, status.Total, previous)
		previous = status.Total
	}
	assert.InDelta(t, 0.30005, previous, 1e-12)
}

func TestAddCost_ConcurrentIncrementsAreAdditive(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), Config{Limit: 100}, discard)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.AddCost(ctx, 0.25)
		}()
	}
	wg.Wait()

	status, err := l.Status(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, status.Total, 1e-9)
}

func TestCheckBudget_FailurePolicy(t *testing.T) {
	ctx := context.Background()

	open := New(&failingStore{}, Config{Limit: 0.5}, discard)
	assert.True(t, open.CheckBudget(ctx), "default policy fails open")

	closed := New(&failingStore{}, Config{Limit: 0.5, Policy: FailClosed}, discard)
	assert.False(t, closed.CheckBudget(ctx))
}

func TestAddCost_SwallowsStoreErrors(t *testing.T) {
	store := &failingStore{}
	l := New(store, Config{Limit: 0.5}, discard)

	assert.NotPanics(t, func() { l.AddCost(context.Background(), 0.01) })
	assert.Equal(t, 1, store.addCalls)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	l := New(NewMemoryStore(), Config{Limit: 0.5, Now: clk.Now}, discard)
	l.AddCost(ctx, 0.2)

	status, err := l.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02", status.Day)
	assert.InDelta(t, 0.3, status.Remaining, 1e-9)
	assert.False(t, status.Exceeded)

	l.AddCost(ctx, 0.4)
	status, err = l.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, status.Remaining)
	assert.True(t, status.Exceeded)

	_, err = New(&failingStore{}, Config{}, discard).Status(ctx)
	assert.Error(t, err)
}

func TestRates_Cost(t *testing.T) {
	r := DefaultRates()
	assert.InDelta(t, 1000*0.0000003+500*0.0000009, r.Cost(1000, 500), 1e-15)
	assert.Equal(t, 0.0, r.Cost(0, 0))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.Error(t, s.Add(ctx, "2026-01-01", 1))
	_, err := s.Total(ctx, "2026-01-01")
	assert.Error(t, err)
}
