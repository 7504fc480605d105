package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/doongeon/good-filings/config"
	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
	"github.com/doongeon/good-filings/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stderr", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	svc, err := convert.GetService(log)
	if err != nil {
		log.Error("Failed to create conversion service", logger.Error(err))
		os.Exit(1)
	}

	workerYAML := os.Getenv("WORKER_CONFIG")
	if workerYAML == "" {
		workerYAML = "config/worker.yaml"
	}
	cfg, err := config.LoadWorkerConfig(workerYAML)
	if err != nil {
		log.Error("Failed to load worker config", logger.Error(err))
		os.Exit(1)
	}

	redisCfg := config.GetRedisConfig()
	workerCfg := &worker.Config{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
		Concurrency:   cfg.Concurrency,
		Queues:        cfg.Queues,
	}

	conversionWorker, err := worker.NewConversionWorker(workerCfg, svc, log)
	if err != nil {
		log.Error("Failed to create conversion worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conversionWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	conversionWorker.Stop()
	log.Info("Worker stopped")
}
