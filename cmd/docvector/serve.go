package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docvector/docvector/pkg/app"
)

// ServeCmd runs the background worker: it claims pending ingestion
// jobs and sweeps the index for drift until interrupted.
type ServeCmd struct {
	ReconcileInterval time.Duration `help:"How often to run the reconciliation sweep (0 disables)." default:"15m"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.ReconcileInterval > 0 {
		go func() {
			ticker := time.NewTicker(c.ReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := a.Reconciler.Sweep(ctx); err != nil && ctx.Err() == nil {
						slog.Error("reconciliation sweep failed", "error", err)
					}
				}
			}
		}()
	}

	slog.Info("worker started", "poll_interval", cfg.Ingestion.PollInterval)
	if err := a.Worker.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
