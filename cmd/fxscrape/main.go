package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Cancelled on SIGINT/SIGTERM so the pipeline stops at the next day
	// boundary and the servers drain.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("interrupted")
			stop()
			os.Exit(130)
		}
		slog.Error("fxscrape failed", "error", err)
		stop()
		os.Exit(1)
	}
}
