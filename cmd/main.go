package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("Shutting down gracefully...")
		cancel()
	}()

	if err := newRootCmd(runTracker).ExecuteContext(ctx); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
