package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prcache/internal/httpapi"
	"github.com/codeGROOVE-dev/prcache/internal/logging"
	"github.com/codeGROOVE-dev/prcache/internal/metrics"
	"github.com/codeGROOVE-dev/prcache/internal/refresh"
	"github.com/codeGROOVE-dev/prcache/pkg/scheduler"
)

func serveCmd() *cobra.Command {
	var (
		addr         string
		interval     time.Duration
		refreshEvery time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background refresher and the local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("interval") {
				cfg.Scheduler.Interval = interval
			}
			if cmd.Flags().Changed("refresh-every") {
				cfg.Refresh.Every = refreshEvery
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m := metrics.New("prcache")
			c, err := openCache(ctx, cfg, m)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					logging.Op().Warn("failed to close cache", "error", err)
				}
			}()

			if n, err := c.Prune(ctx); err != nil {
				logging.Op().Warn("failed to prune cache", "error", err)
			} else if n > 0 {
				logging.Op().Info("pruned orphaned payloads at startup", "count", n)
			}

			s := scheduler.New(
				scheduler.WithContext(ctx),
				scheduler.WithLogger(logging.Op()),
				scheduler.WithMetrics(m),
			)
			s.Start(cfg.Scheduler.Interval)
			defer func() {
				s.Stop()
				// Queued fetches are dropped; a running one sees ctx canceled.
				deadline := time.Now().Add(10 * time.Second)
				for s.Busy() && time.Now().Before(deadline) {
					time.Sleep(50 * time.Millisecond)
				}
				if s.Busy() {
					logging.Op().Warn("scheduler task still running at shutdown", "pending", s.Pending())
				}
			}()

			jobs := make([]refresh.Job, 0, len(cfg.Refresh.Jobs))
			for _, j := range cfg.Refresh.Jobs {
				jobs = append(jobs, refresh.Job{Key: j.Key, URL: j.URL, TTL: j.TTL})
			}
			if len(jobs) > 0 && cfg.Refresh.Every > 0 {
				r := newRefresher(c, s, cfg)
				go func() {
					if err := r.Run(ctx, cfg.Refresh.Every, jobs); err != nil && !errors.Is(err, context.Canceled) {
						logging.Op().Error("refresher stopped", "error", err)
					}
				}()
				logging.Op().Info("refresher started", "jobs", len(jobs), "every", cfg.Refresh.Every)
			}

			srv := httpapi.New(c,
				httpapi.WithLogger(logging.Op()),
				httpapi.WithMetricsHandler(m.Handler()),
			)
			if err := srv.Start(ctx, cfg.Server.Addr); err != nil {
				return err
			}
			logging.Op().Info("shutdown signal received")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config: 127.0.0.1:8765)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Scheduler tick interval")
	cmd.Flags().DurationVar(&refreshEvery, "refresh-every", 5*time.Minute, "Period between refreshes of every configured job")
	return cmd
}
