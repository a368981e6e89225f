package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"survey-assistant-be/internal/bootstrap"
	"survey-assistant-be/internal/config"
	"survey-assistant-be/internal/server"
	"survey-assistant-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Telemetry)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}

	// 5. Initialize and run Server
	srv := server.New(cfg, container)
	if err := srv.Run(ctx); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
