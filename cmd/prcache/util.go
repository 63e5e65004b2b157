package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prcache"
	"github.com/codeGROOVE-dev/prcache/internal/config"
	"github.com/codeGROOVE-dev/prcache/internal/logging"
	"github.com/codeGROOVE-dev/prcache/internal/metrics"
	"github.com/codeGROOVE-dev/prcache/internal/output"
	"github.com/codeGROOVE-dev/prcache/pkg/store/compress"
)

// loadConfig layers the config file, PRCACHE_* environment and flags, then
// configures logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)

	if cmd.Flags().Changed("dir") {
		cfg.Cache.Dir = cacheDir
	}
	if cmd.Flags().Changed("max-size") {
		cfg.Cache.MaxSizeBytes = maxSize
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.SetOutput(os.Stderr, cfg.Log.Format)
	logging.SetLevelFromString(cfg.Log.Level)
	return cfg, nil
}

// openCache opens the response cache described by cfg. m may be nil.
func openCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*prcache.Cache[json.RawMessage], error) {
	comp, err := compress.Parse(cfg.Cache.Compression)
	if err != nil {
		return nil, err
	}

	opts := []prcache.Option{
		prcache.WithDir(cfg.Cache.Dir),
		prcache.WithMaxSize(cfg.Cache.MaxSizeBytes),
		prcache.WithMaxAge(cfg.Cache.MaxAge),
		prcache.WithCompressor(comp),
		prcache.WithLogger(logging.Op()),
	}
	if m != nil {
		opts = append(opts, prcache.WithMetrics(m))
	}

	c, err := prcache.New[json.RawMessage](ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return c, nil
}

// withCache loads config, opens the cache, runs fn and closes the cache.
func withCache(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, c *prcache.Cache[json.RawMessage], p *output.Printer) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := openCache(ctx, cfg, nil)
	if err != nil {
		return err
	}

	p := output.NewPrinter(output.ParseFormat(outputFormat))
	p.SetWriter(cmd.OutOrStdout())

	runErr := fn(ctx, cfg, c, p)
	if err := c.Close(); err != nil {
		logging.Op().Warn("failed to close cache", "error", err)
	}
	return runErr
}
