// Command targetdb imports regulatory-network data and answers target
// queries against it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"targetdb/internal/core"
	"targetdb/internal/ctxlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "targetdb",
	Short:         "Gene regulatory network import and query engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// commandContext builds the context every command runs under, carrying the
// configured logger.
func commandContext() context.Context {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// openService opens the configured store and wraps it in a service. The
// returned closer flushes and releases the store.
func openService(ctx context.Context) (*core.Service, func(), error) {
	store, err := core.OpenPersistentStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	metrics := core.NewExpvarMetricsRecorder("targetdb_service_metrics")
	svc := core.NewService(store, core.WithMetricsRecorder(metrics))
	return svc, func() { _ = store.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "targetdb:", err)
		os.Exit(1)
	}
}
