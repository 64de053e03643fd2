package idle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Defaults for Monitor.
const (
	DefaultInterval = time.Minute
	DefaultTimeout  = 10 * time.Minute
	// DefaultTickCost is the compute cost accrued per interval.
	DefaultTickCost = 0.00005
)

// CostRecorder accrues spend. Implementations must not block for long and
// must swallow their own failures.
type CostRecorder interface {
	AddCost(ctx context.Context, amount float64)
}

// Config tunes a Monitor.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	TickCost float64
}

// Monitor periodically accrues runtime cost and terminates the instance after
// Timeout without activity.
type Monitor struct {
	tracker    *Tracker
	costs      CostRecorder
	terminator Terminator
	cfg        Config
	logger     *slog.Logger

	mu         sync.Mutex
	terminated bool
}

// ErrNoTerminator is returned by Stop on a monitor that only accrues cost.
var ErrNoTerminator = errors.New("idle: no terminator configured")

// NewMonitor creates a monitor. A nil terminator disables idle shutdown. Zero config fields take the defaults; a
// negative TickCost disables cost accrual.
func NewMonitor(tracker *Tracker, costs CostRecorder, terminator Terminator, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TickCost == 0 {
		cfg.TickCost = DefaultTickCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		tracker:    tracker,
		costs:      costs,
		terminator: terminator,
		cfg:        cfg,
		logger:     logger.With("component", "idle"),
	}
}

// Run ticks until ctx is cancelled. It returns nil on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("starting idle monitor",
		"interval", m.cfg.Interval.String(),
		"timeout", m.cfg.Timeout.String(),
	)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down idle monitor")
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if m.cfg.TickCost > 0 && m.costs != nil {
		m.costs.AddCost(ctx, m.cfg.TickCost)
	}

	if m.terminator == nil {
		return
	}
	idleFor := m.tracker.Since()
	if idleFor <= m.cfg.Timeout {
		return
	}
	m.logger.Info("idle timeout reached", "idle", idleFor.Round(time.Second).String())
	if err := m.Stop(ctx); err != nil {
		m.logger.Error("failed to terminate instance", "error", err)
	}
}

// Stop terminates the instance immediately. Only the first successful call
// reaches the terminator; a failed attempt may be retried.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.terminator == nil {
		return ErrNoTerminator
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminated {
		return nil
	}
	if err := m.terminator.Terminate(ctx); err != nil {
		return err
	}
	m.terminated = true
	return nil
}

// Terminated reports whether the instance has been told to stop.
func (m *Monitor) Terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}
