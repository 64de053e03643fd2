// Package ratelimit throttles API callers per client and route class. Model
// calls, toolchain runs, writes and reads each draw on their own bucket, so
// browsing the document never eats into the paid budget.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule allows Limit requests per Window with bursts of up to Burst.
type Rule struct {
	Limit  int
	Window time.Duration
	Burst  int // defaults to Limit
}

func (r Rule) perSecond() float64 {
	return float64(r.Limit) / r.Window.Seconds()
}

func (r Rule) burst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

// refill is how long the bucket takes to gain missing tokens.
func (r Rule) refill(missing float64) time.Duration {
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / r.perSecond() * float64(time.Second))
}

// Config holds rate limiting configuration. A class without a rule, or with
// a non-positive Limit, is not limited.
type Config struct {
	Enabled bool
	Rules   map[Class]Rule
	Allow   map[string]bool // clients never limited
	Deny    map[string]bool // clients always rejected
	// Buckets idle for IdleTTL are dropped every SweepInterval.
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Class      Class
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one bucket per client and class.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a Limiter. A nil config uses DefaultConfig.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	l := &Limiter{
		cfg:     *cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.SweepInterval > 0 && cfg.IdleTTL > 0 {
		go l.sweepLoop()
	}
	return l
}

// Allow charges one request by clientID to the bucket of the route's class.
func (l *Limiter) Allow(clientID, method, path string) Decision {
	class := Classify(method, path)
	d := Decision{Allowed: true, Class: class}
	if !l.cfg.Enabled || class == ClassExempt || l.cfg.Allow[clientID] {
		return d
	}
	if l.cfg.Deny[clientID] {
		d.Allowed = false
		return d
	}
	rule, ok := l.cfg.Rules[class]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return d
	}

	now := l.now()
	lim := l.bucket(clientID, class, rule, now)
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	d.Limit = rule.Limit
	d.Remaining = max(0, int(tokens))
	d.ResetAt = now.Add(rule.refill(float64(rule.burst()) - tokens))
	if !allowed {
		d.Allowed = false
		d.RetryAfter = rule.refill(1 - tokens)
	}
	return d
}

func (l *Limiter) bucket(clientID string, class Class, rule Rule, now time.Time) *rate.Limiter {
	key := string(class) + "|" + clientID

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rule.perSecond()), rule.burst())}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets last used before now minus IdleTTL.
func (l *Limiter) sweep(now time.Time) int {
	cutoff := now.Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
