package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/clearpath/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clearpath",
		Short: "Retrieval-augmented support assistant",
		Long: `clearpath answers customer-support questions from a folder of
documents. It indexes the documents once, then retrieves the most relevant
passages for each question and asks a language model to answer from them.

Configuration comes from the environment or a .env file.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd(), newIndexCmd(), newAskCmd())
	return cmd
}

// loadConfig reads and validates configuration and builds the JSON logger.
func loadConfig(w io.Writer) (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		return cfg, log, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}
