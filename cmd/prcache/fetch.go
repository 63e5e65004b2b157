package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prcache"
	"github.com/codeGROOVE-dev/prcache/internal/config"
	"github.com/codeGROOVE-dev/prcache/internal/logging"
	"github.com/codeGROOVE-dev/prcache/internal/output"
	"github.com/codeGROOVE-dev/prcache/internal/refresh"
	"github.com/codeGROOVE-dev/prcache/pkg/scheduler"
)

func fetchCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "fetch <key> <url>",
		Short: "Print the cached response for url, fetching it on a miss",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, cfg *config.Config, c *prcache.Cache[json.RawMessage], p *output.Printer) error {
				r := newRefresher(c, scheduler.New(scheduler.WithLogger(logging.Op())), cfg)
				v, err := r.Fetch(ctx, refresh.Job{Key: args[0], URL: args[1], TTL: ttl})
				if err != nil {
					return err
				}
				return p.PrintRaw(v)
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Minute, "Time to live for a fetched response")
	return cmd
}

func newRefresher(c *prcache.Cache[json.RawMessage], s *scheduler.Scheduler, cfg *config.Config) *refresh.Refresher {
	return refresh.New(c, s,
		refresh.WithToken(cfg.Refresh.Token),
		refresh.WithTimeout(cfg.Refresh.Timeout),
		refresh.WithLogger(logging.Op()),
	)
}
