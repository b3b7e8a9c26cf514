package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"signage.relay/internal/agent"
	"signage.relay/internal/config"
	"signage.relay/internal/core/domain"
	"signage.relay/internal/core/logger"
)

const agentVersion = "relay-agent-1"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("invalid agent config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	hostname, err := os.Hostname()
	if err != nil {
		logger.Warn("failed to resolve hostname", "error", err)
		hostname = "unknown-agent"
	}

	logger.Info("starting agent",
		"agent_id", cfg.AgentID,
		"cloud", cfg.CloudBaseURL,
		"local_backend", cfg.LocalBackendURL,
	)

	client := agent.NewClient(cfg.CloudBaseURL, cfg.AgentID, cfg.AgentSharedSecret, cfg.RequestTimeout)
	executor := agent.NewExecutor(agent.NewHTTPLocalExecutor(cfg.LocalBackendURL, cfg.RequestTimeout))

	runtime := agent.NewRuntime(client, executor, domain.AgentMeta{
		Version:         agentVersion,
		Hostname:        hostname,
		LocalBackendURL: cfg.LocalBackendURL,
	}, agent.RuntimeOptions{
		PollInterval:      cfg.PollInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxJobsPerPoll:    cfg.MaxJobsPerPoll,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down agent")
		cancel()
	}()

	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("agent error: %v", err)
	}
}
