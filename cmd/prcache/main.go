package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile   string
	cacheDir     string
	maxSize      int64
	logLevel     string
	outputFormat string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "prcache",
		Short:         "Inspect and warm the pull request response cache",
		Long:          "Manage the on-disk response cache and run the background refresher with its local HTTP view",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "dir", "", "Cache directory (default: user cache dir)")
	rootCmd.PersistentFlags().Int64Var(&maxSize, "max-size", 0, "Maximum cache size in bytes")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(
		statsCmd(),
		lsCmd(),
		getCmd(),
		setCmd(),
		rmCmd(),
		clearCmd(),
		pruneCmd(),
		fetchCmd(),
		serveCmd(),
	)
	return rootCmd
}
