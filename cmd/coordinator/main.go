package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	http_handler "signage.relay/internal/adapters/handler/http"
	"signage.relay/internal/adapters/store/memory"
	"signage.relay/internal/config"
	"signage.relay/internal/core/logger"
	"signage.relay/internal/core/services"
	"signage.relay/internal/core/tracing"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.LoadCoordinator()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	logger.Info("starting coordinator", "service", cfg.ServiceName)

	if cfg.EnableTracing {
		shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
		} else {
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	if cfg.AuthRequired {
		if cfg.CloudAPIKey == "" {
			logger.Warn("CLOUD_API_KEY not set, submitter endpoints will answer 503")
		}
		if cfg.AgentSharedSecret == "" {
			logger.Warn("AGENT_SHARED_SECRET not set, agent endpoints will answer 503")
		}
	}

	store := memory.NewStore(cfg.MaxQueueDepth)

	hub := http_handler.NewHub()
	go hub.Run()

	dispatch := services.NewDispatchService(store, store, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := services.NewStatsMonitor(store, http_handler.GaugeRecorder{})
	go monitor.Start(ctx)

	httpServer := http_handler.NewServer(dispatch, hub, cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := httpServer.Run(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("HTTP server failed", "error", err)
		log.Fatalf("failed to serve http: %v", err)
	}
}
