package main

import (
	"context"
	"net/http"
	"time"

	"wanworker/internal/config"
	"wanworker/internal/httpapi"
	"wanworker/internal/httpapi/handlers"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/pkg/shutdown"
	"wanworker/internal/worker"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = config.Env("SERVICE_NAME", "wan-api")
	log := logger.New(logCfg)

	log.Info("starting WAN API", "port", cfg.HTTPPort)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	deps := handlers.Deps{Log: log}

	// The job endpoints need both backends; without them the API serves
	// /runsync only. Queued jobs are run by cmd/worker.
	if cfg.DatabaseURL != "" && cfg.RedisAddr != "" {
		b, err := worker.Connect(ctx, cfg, log, shutdownMgr)
		if err != nil {
			shutdownMgr.Shutdown()
			log.LogFatal("failed to connect backends", err)
		}
		deps.Store = b.Store
		deps.Queue = b.Queue
	} else {
		log.Warn("DATABASE_URL or REDIS_ADDR not set, job endpoints disabled")
	}

	p, sp, err := worker.NewProcessor(ctx, cfg, log)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to build processor", err)
	}
	deps.Runner = p
	if sp != nil {
		deps.StorageProvider = sp.Provider()
	}
	log.Info("processor ready", "storage", deps.StorageProvider)

	server := &http.Server{
		Addr:        "0.0.0.0:" + cfg.HTTPPort,
		Handler:     httpapi.NewRouter(deps),
		ReadTimeout: 30 * time.Second,
		// /runsync holds the connection for the whole generation.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait(ctx)
}
