package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"wanworker/internal/config"
	"wanworker/internal/jobstore"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/pkg/shutdown"
	"wanworker/internal/worker"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := logger.NewDefault()

	log.Info("starting WAN worker",
		"runtime", cfg.Runtime,
		"wan_dir", cfg.Wan.Dir,
		"s3_enabled", cfg.S3.Enabled(),
	)

	switch cfg.Runtime {
	case "lambda":
		runLambda(cfg, log)
	case "queue":
		runQueue(cfg, log)
	default:
		log.Error("unknown WORKER_RUNTIME, expected lambda or queue", "runtime", cfg.Runtime)
	}
}

func runLambda(cfg config.Config, log *logger.Logger) {
	p, sp, err := worker.NewProcessor(context.Background(), cfg, log)
	if err != nil {
		log.LogFatal("failed to build processor", err)
	}
	log.Info("processor ready", "storage", providerName(sp))

	lambda.Start(worker.LambdaHandler(p))
}

func runQueue(cfg config.Config, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Generation can run for many minutes; the in-flight job is allowed
	// to finish before connections close.
	shutdownMgr := shutdown.NewManager(log, 30*time.Minute)

	b, err := worker.Connect(ctx, cfg, log, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to connect backends", err)
	}

	p, sp, err := worker.NewProcessor(ctx, cfg, log, jobstore.NewReporter(b.Store, log))
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to build processor", err)
	}
	log.Info("processor ready", "storage", providerName(sp), "queue", cfg.QueueName)

	stopped := make(chan struct{})
	shutdownMgr.Register("worker", func(ctx context.Context) error {
		cancel()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		err := worker.Run(ctx, worker.Deps{
			Queue:   b.Queue,
			Store:   b.Store,
			Handler: p,
			Log:     log,
		})
		close(stopped)
		if err != nil && err != context.Canceled {
			log.Error("worker stopped", "error", err.Error())
		}
		shutdownMgr.Shutdown()
	}()

	shutdownMgr.Wait(ctx)
}

type namer interface{ Provider() string }

func providerName(sp namer) string {
	if sp == nil {
		return "inline"
	}
	return sp.Provider()
}
