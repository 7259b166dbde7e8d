package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"fluxgate/internal/config"
	"fluxgate/internal/engine"
	"fluxgate/internal/logging"
	"fluxgate/source/kafka"
)

func main() {
	cfgPath := flag.String("config", "gateway.yml", "gateway config file (optional)")
	pipeline := flag.String("pipeline", "", "consumer pipeline file; overrides the config")
	flag.Parse()

	logging.InitFromEnv()

	cfg, err := config.LoadGatewayConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *pipeline != "" {
		cfg.Pipeline = *pipeline
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	kafka.Register("sarama", func() kafka.Adapter { return &kafka.SaramaDriver{} })

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
