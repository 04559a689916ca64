package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeuralTrust/ReviewGuard/pkg/config"
	"github.com/NeuralTrust/ReviewGuard/pkg/dependency_container"
	infraLogger "github.com/NeuralTrust/ReviewGuard/pkg/infra/logger"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const serviceName = "review-guard"

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger, closeLogger, err := infraLogger.NewLogger(infraLogger.OptionsFromEnv(serviceName))
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer closeLogger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	container, err := dependency_container.NewContainer(dependency_container.ContainerDI{
		Cfg:    cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("failed to initialize dependencies: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return container.OpsServer.Run()
	})
	g.Go(func() error {
		defer func() {
			if err := container.Consumer.Close(); err != nil {
				logger.WithError(err).Warn("failed to close kafka consumer")
			}
		}()
		return container.Consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		container.OpsServer.SetReady(false)
		logger.Info("shutting down")
		return container.OpsServer.Shutdown()
	})

	container.OpsServer.SetReady(true)
	logger.WithField("topic", cfg.Kafka.Topic).
		WithField("provider", container.Provider.Name()).
		Info("review moderation service started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("service stopped with error")
		closeLogger()
		os.Exit(1)
	}
	logger.Info("service stopped")
}
