package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/app"
	"github.com/nidoapp/nido-api/internal/deletion"
)

func main() {
	app := fx.New(
		app.WorkerModule,
		fx.Invoke(startWorker),
	)

	app.Run()
}

func startWorker(worker *deletion.Worker, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	logger.Info("Starting Nido deletion worker")
	if err := worker.Start(ctx); err != nil {
		logger.Error("Failed to start worker", zap.Error(err))
		os.Exit(1)
	}
}
