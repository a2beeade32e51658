package main

import (
	"context"
	"log" // Standard log for critical startup/shutdown messages before zap is active
	"os/signal"
	"syscall"

	"sic_device_agent/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	agent, cleanup, err := initializeAgent(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize agent: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("FATAL: Agent exited with error: %v", err)
	}
	log.Println("INFO: Application exiting.")
}
