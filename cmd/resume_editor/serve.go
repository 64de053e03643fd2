package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-editor/internal/config"
	"github.com/jonathan/resume-editor/internal/idle"
	"github.com/jonathan/resume-editor/internal/server"
	"github.com/jonathan/resume-editor/internal/server/ratelimit"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that exposes the editing endpoints. On startup the
document is synced from git and compiled. An idle monitor accrues runtime cost
and stops the instance after the configured idle timeout.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	if servePort > 0 {
		a.cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parts, err := a.buildEditor(ctx, true)
	if err != nil {
		return err
	}
	parts.editor.Bootstrap(ctx)

	jwtCfg, err := config.OptionalJWTConfig()
	if err != nil {
		return fmt.Errorf("invalid JWT configuration: %w", err)
	}
	if jwtCfg == nil {
		a.logger.Warn("JWT_SECRET not set; mutating routes are unauthenticated")
	}

	terminator, err := a.terminator(ctx, cancel)
	if err != nil {
		return err
	}
	tracker := idle.NewTracker(time.Now)
	_, interval, timeout := a.cfg.Durations()
	monitor := idle.NewMonitor(tracker, parts.ledger, terminator, idle.Config{
		Interval: interval,
		Timeout:  timeout,
		TickCost: a.cfg.IdleTickCost,
	}, a.logger)

	deps := server.Deps{
		Editor:   parts.editor,
		Spend:    parts.ledger,
		Activity: tracker,
	}
	if terminator != nil {
		deps.Stopper = monitor
	} else {
		a.logger.Info("idle shutdown disabled; runtime cost is still accrued")
	}
	srv, err := server.New(server.Config{
		Port:        a.cfg.Port,
		CORSOrigins: a.cfg.CORSOrigins,
		JWT:         jwtCfg,
		RateLimit:   ratelimit.LoadConfig(),
	}, deps, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	return g.Wait()
}

// terminator returns nil when idle shutdown is disabled.
// The cancel terminator ends serve as if it had received SIGTERM.
func (a *app) terminator(ctx context.Context, cancel context.CancelFunc) (idle.Terminator, error) {
	switch a.cfg.IdleTerminator {
	case config.TerminatorECS:
		t, err := idle.NewECSTerminator(ctx, a.cfg.AWSRegion, a.cfg.ECSCluster)
		if err != nil {
			return nil, fmt.Errorf("failed to create ECS terminator: %w", err)
		}
		return t, nil
	case config.TerminatorCancel:
		return idle.NewCancelTerminator(cancel), nil
	default:
		return nil, nil
	}
}
