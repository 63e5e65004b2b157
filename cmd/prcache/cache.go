package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prcache"
	"github.com/codeGROOVE-dev/prcache/internal/config"
	"github.com/codeGROOVE-dev/prcache/internal/output"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and entry count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, func(_ context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], p *output.Printer) error {
				s := c.Stats()
				row := output.StatsRow{
					Dir:            c.Dir(),
					EntryCount:     s.EntryCount,
					TotalSizeBytes: s.TotalSizeBytes,
					MaxSizeBytes:   s.MaxSizeBytes,
				}
				if s.MaxSizeBytes > 0 {
					row.UsedPercent = float64(s.TotalSizeBytes) * 100 / float64(s.MaxSizeBytes)
				}
				return p.PrintStats(row)
			})
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cached keys, oldest write first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, func(_ context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], p *output.Printer) error {
				return p.PrintKeys(c.Keys())
			})
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], p *output.Printer) error {
				v, ok := c.Get(ctx, args[0])
				if !ok {
					return fmt.Errorf("%s: not cached", args[0])
				}
				return p.PrintRaw(v)
			})
		},
	}
}

func setCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], []byte(args[1])
			if !json.Valid(raw) {
				return errors.New("value is not valid JSON")
			}
			return withCache(cmd, func(ctx context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], _ *output.Printer) error {
				return c.Put(ctx, key, json.RawMessage(raw), ttl)
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Time to live (0 = until swept or evicted)")
	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>...",
		Short: "Remove cached keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], _ *output.Printer) error {
				for _, k := range args {
					c.Remove(ctx, k)
				}
				return nil
			})
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, func(ctx context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], _ *output.Printer) error {
				n := c.Clear(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			})
		},
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete payload files no index entry refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, func(ctx context.Context, _ *config.Config, c *prcache.Cache[json.RawMessage], _ *output.Printer) error {
				n, err := c.Prune(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d files\n", n)
				return nil
			})
		},
	}
}
