package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Root context cancels on SIGINT/SIGTERM so serve shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
