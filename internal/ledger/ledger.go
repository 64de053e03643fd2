// Package ledger keeps the per-day spend total that gates paid operations.
//
// The total for a UTC day only ever grows, and every backend increments it
// with an atomic server-side add, so the idle monitor and concurrent
// requests can accrue cost without coordinating.
package ledger

import (
	"context"
	"log/slog"
	"time"
)

// DayLayout is the key format for a spend record.
const DayLayout = "2006-01-02"

// Store persists daily totals.
type Store interface {
	// Add increments the total for day by amount in a single atomic step.
	Add(ctx context.Context, day string, amount float64) error
	// Total returns the accumulated amount for day, zero when none exists.
	Total(ctx context.Context, day string) (float64, error)
}

// Policy decides what CheckBudget answers when the store cannot be read.
type Policy string

const (
	// FailOpen keeps serving when the store is unreachable. Spend during an
	// outage is not capped.
	FailOpen Policy = "fail_open"
	// FailClosed rejects paid work while the store is unreachable.
	FailClosed Policy = "fail_closed"
)

// Config configures a Ledger.
type Config struct {
	Limit  float64
	Policy Policy
	Now    func() time.Time // defaults to time.Now
}

// Status is a snapshot of today's spend.
type Status struct {
	Day       string  `json:"day"`
	Total     float64 `json:"total"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
	Exceeded  bool    `json:"exceeded"`
}

// Ledger checks and accrues spend against a daily limit.
type Ledger struct {
	store  Store
	limit  float64
	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Ledger over store.
func New(store Store, cfg Config, logger *slog.Logger) *Ledger {
	if cfg.Policy == "" {
		cfg.Policy = FailOpen
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		limit:  cfg.Limit,
		policy: cfg.Policy,
		now:    cfg.Now,
		logger: logger.With("component", "ledger"),
	}
}

// Day returns the UTC calendar-day key for t.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Today returns the key for the ledger's current day.
func (l *Ledger) Today() string {
	return Day(l.now())
}

// CheckBudget reports whether today's total is strictly below the limit.
// Store failures are answered according to the configured Policy.
func (l *Ledger) CheckBudget(ctx context.Context) bool {
	day := l.Today()
	total, err := l.store.Total(ctx, day)
	if err != nil {
		allow := l.policy != FailClosed
		l.logger.Warn("spend store unreachable", "day", day, "policy", l.policy, "allow", allow, "error", err)
		return allow
	}
	return total < l.limit
}

// AddCost accrues amount against today. Failures are logged and swallowed;
// accounting must never abort the operation that incurred the cost.
func (l *Ledger) AddCost(ctx context.Context, amount float64) {
	if amount < 0 {
		l.logger.Warn("ignoring negative cost", "amount", amount)
		return
	}
	if amount == 0 {
		return
	}
	day := l.Today()
	if err := l.store.Add(ctx, day, amount); err != nil {
		l.logger.Error("failed to record spend", "day", day, "amount", amount, "error", err)
		return
	}
	l.logger.Debug("spend recorded", "day", day, "amount", amount)
}

// Status returns today's totals.
func (l *Ledger) Status(ctx context.Context) (*Status, error) {
	day := l.Today()
	total, err := l.store.Total(ctx, day)
	if err != nil {
		return nil, err
	}
	remaining := l.limit - total
	if remaining < 0 {
		remaining = 0
	}
	return &Status{
		Day:       day,
		Total:     total,
		Limit:     l.limit,
		Remaining: remaining,
		Exceeded:  total >= l.limit,
	}, nil
}

// Rates converts model token usage into spend.
type Rates struct {
	InputPerToken  float64 `json:"input_per_token" yaml:"input_per_token"`
	OutputPerToken float64 `json:"output_per_token" yaml:"output_per_token"`
}

// DefaultRates are the per-token prices of the default hosted model.
func DefaultRates() Rates {
	return Rates{InputPerToken: 0.0000003, OutputPerToken: 0.0000009}
}

// Cost returns the price of a call that consumed the given token counts.
func (r Rates) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*r.InputPerToken + float64(outputTokens)*r.OutputPerToken
}
