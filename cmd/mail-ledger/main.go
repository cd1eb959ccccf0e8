package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/di"
	"github.com/mikey/mail-ledger/internal/factory"
	"github.com/mikey/mail-ledger/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	runners []ports.Runner,
	repo core.TransactionRepository,
	classifiers *factory.ClassifierFactory,
) error {
	defer logger.Sync()

	// Start every enabled surface; unwind the ones already running on failure
	started := make([]ports.Runner, 0, len(runners))
	for _, r := range runners {
		if err := r.Start(); err != nil {
			logger.Error("Failed to start runner", zap.Error(err))
			stopAll(logger, started)
			return err
		}
		started = append(started, r)
	}
	logger.Info("Mail ledger started", zap.Int("runners", len(started)))

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	stopAll(logger, started)

	if err := classifiers.Close(); err != nil {
		logger.Error("Failed to close classifier", zap.Error(err))
	}
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close repository", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

// stopAll stops runners in reverse start order
func stopAll(logger *zap.Logger, runners []ports.Runner) {
	for i := len(runners) - 1; i >= 0; i-- {
		if err := runners[i].Stop(); err != nil {
			logger.Error("Failed to stop runner", zap.Error(err))
		}
	}
}
