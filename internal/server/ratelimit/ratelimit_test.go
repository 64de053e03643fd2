package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestLimiter runs without the sweeper so the clock can be swapped.
func newTestLimiter(t *testing.T, rules map[Class]Rule) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(&Config{Enabled: true, Rules: rules})
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestClassify(t *testing.T) {
	tests := []struct {
		method, path string
		want         Class
	}{
		{http.MethodPost, "/update", ClassPaid},
		{http.MethodPost, "/update/stream", ClassPaid},
		{http.MethodPost, "/preview", ClassCompile},
		{http.MethodPost, "/save", ClassWrite},
		{http.MethodPost, "/commit", ClassWrite},
		{http.MethodPost, "/stop", ClassWrite},
		{http.MethodGet, "/resume", ClassRead},
		{http.MethodGet, "/pdf", ClassRead},
		{http.MethodGet, "/spend", ClassRead},
		{http.MethodGet, "/health", ClassExempt},
		{http.MethodOptions, "/update", ClassExempt},
		{http.MethodGet, "/update", ClassRead},
		{http.MethodPost, "/update/", ClassWrite},
		{http.MethodDelete, "/resume", ClassWrite},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.method, tt.path))
		})
	}
}

func TestLimiter_UpdateRoutesShareThePaidBucket(t *testing.T) {
	l, _ := newTestLimiter(t, map[Class]Rule{
		ClassPaid: {Limit: 2, Window: time.Hour},
	})

	assert.True(t, l.Allow("10.0.0.1", http.MethodPost, "/update").Allowed)
	assert.True(t, l.Allow("10.0.0.1", http.MethodPost, "/update/stream").Allowed)

	d := l.Allow("10.0.0.1", http.MethodPost, "/update")
	assert.False(t, d.Allowed, "switching to the stream route does not reset the budget")
	assert.Equal(t, ClassPaid, d.Class)
	assert.Equal(t, 2, d.Limit)
	assert.Zero(t, d.Remaining)

	assert.True(t, l.Allow("10.0.0.2", http.MethodPost, "/update").Allowed, "other clients have their own bucket")
}

func TestLimiter_ReadsDoNotDrainPaidBudget(t *testing.T) {
	l, _ := newTestLimiter(t, map[Class]Rule{
		ClassPaid: {Limit: 1, Window: time.Hour},
		ClassRead: {Limit: 2, Window: time.Minute},
	})

	assert.True(t, l.Allow("c", http.MethodGet, "/resume").Allowed)
	assert.True(t, l.Allow("c", http.MethodGet, "/pdf").Allowed)
	assert.False(t, l.Allow("c", http.MethodGet, "/history").Allowed)

	assert.True(t, l.Allow("c", http.MethodPost, "/update").Allowed)
	assert.False(t, l.Allow("c", http.MethodPost, "/update").Allowed)
}

func TestLimiter_PreviewAndStopHaveTheirOwnBudgets(t *testing.T) {
	l, _ := newTestLimiter(t, map[Class]Rule{
		ClassCompile: {Limit: 1, Window: time.Hour},
		ClassWrite:   {Limit: 1, Window: time.Minute},
	})

	assert.True(t, l.Allow("c", http.MethodPost, "/preview").Allowed)
	assert.False(t, l.Allow("c", http.MethodPost, "/preview").Allowed)

	assert.True(t, l.Allow("c", http.MethodPost, "/stop").Allowed)
	d := l.Allow("c", http.MethodPost, "/save")
	assert.False(t, d.Allowed, "save and stop share the write bucket")
	assert.Equal(t, ClassWrite, d.Class)
}

func TestLimiter_RefillsOverTheWindow(t *testing.T) {
	l, clock := newTestLimiter(t, map[Class]Rule{
		ClassPaid: {Limit: 4, Window: time.Hour, Burst: 1},
	})

	first := l.Allow("c", http.MethodPost, "/update")
	require.True(t, first.Allowed)
	assert.WithinDuration(t, clock.Now().Add(15*time.Minute), first.ResetAt, time.Millisecond)

	denied := l.Allow("c", http.MethodPost, "/update")
	require.False(t, denied.Allowed)
	assert.InDelta(t, float64(15*time.Minute), float64(denied.RetryAfter), float64(time.Millisecond))

	clock.Advance(10 * time.Minute)
	assert.False(t, l.Allow("c", http.MethodPost, "/update").Allowed)

	clock.Advance(5*time.Minute + time.Second)
	assert.True(t, l.Allow("c", http.MethodPost, "/update").Allowed)
}

func TestLimiter_ExemptAndUnconfiguredClasses(t *testing.T) {
	l, _ := newTestLimiter(t, map[Class]Rule{
		ClassPaid: {Limit: 1, Window: time.Hour},
		ClassRead: {Limit: 0, Window: time.Minute},
	})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("c", http.MethodGet, "/health").Allowed)
		assert.True(t, l.Allow("c", http.MethodGet, "/resume").Allowed, "zero limit is unlimited")
		assert.True(t, l.Allow("c", http.MethodPost, "/save").Allowed, "no write rule")
	}
}

func TestLimiter_AllowAndDenyLists(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled: true,
		Rules:   map[Class]Rule{ClassPaid: {Limit: 1, Window: time.Hour}},
		Allow:   map[string]bool{"10.0.0.9": true},
		Deny:    map[string]bool{"10.0.0.6": true},
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.9", http.MethodPost, "/update").Allowed)
	}
	assert.False(t, l.Allow("10.0.0.6", http.MethodGet, "/resume").Allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false, Rules: map[Class]Rule{ClassPaid: {Limit: 1, Window: time.Hour}}})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		d := l.Allow("c", http.MethodPost, "/update")
		assert.True(t, d.Allowed)
		assert.Zero(t, d.Limit)
	}
}

func TestLimiter_SweepDropsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter(t, DefaultRules())
	l.cfg.IdleTTL = time.Hour

	l.Allow("old", http.MethodPost, "/update")
	clock.Advance(2 * time.Hour)
	l.Allow("new", http.MethodPost, "/update")
	l.Allow("new", http.MethodGet, "/resume")

	assert.Equal(t, 1, l.sweep(clock.Now()))
	assert.Len(t, l.buckets, 2)
	assert.NotContains(t, l.buckets, string(ClassPaid)+"|old")
}

func TestLimiter_ConcurrentClients(t *testing.T) {
	l, _ := newTestLimiter(t, map[Class]Rule{ClassPaid: {Limit: 10, Window: time.Hour}})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared", http.MethodPost, "/update").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Millisecond
	l := NewLimiter(&cfg)
	l.Stop()
	l.Stop()
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		"RATE_LIMIT_PAID_LIMIT":  "3",
		"RATE_LIMIT_PAID_WINDOW": "24h",
		"RATE_LIMIT_READ_BURST":  "oops",
		"RATE_LIMIT_ALLOW":       " 10.0.0.1 , ,10.0.0.2",
	}
	cfg := loadConfig(func(k string) string { return env[k] })

	assert.True(t, cfg.Enabled)
	assert.Equal(t, Rule{Limit: 3, Window: 24 * time.Hour, Burst: 5}, cfg.Rules[ClassPaid])
	assert.Equal(t, DefaultRules()[ClassRead], cfg.Rules[ClassRead], "bad values keep the default")
	assert.Equal(t, map[string]bool{"10.0.0.1": true, "10.0.0.2": true}, cfg.Allow)
	assert.Empty(t, cfg.Deny)

	env = map[string]string{"RATE_LIMIT_ENABLED": "false"}
	assert.False(t, loadConfig(func(k string) string { return env[k] }).Enabled)
}
