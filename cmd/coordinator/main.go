package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"product-dispatch/core"
)

func main() {
	cfg := core.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "coordinator.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClientRetry(ctx, cfg.RedisURL, cfg.BrokerMaxAttempts, cfg.BrokerRetryDelay)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	authClient := core.NewHTTPAuthClient(cfg.AuthServiceURL)
	publisher := core.NewTaskPublisher(core.NewTaskQueue(redisClient))
	products := core.NewPgProductRepository(db)
	metrics := core.NewMetricsService(redisClient)

	router := core.NewRouter(cfg, authClient, publisher, products, metrics)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting coordinator on %s (auth=%s queue=%s)", addr, cfg.AuthServiceURL, core.TaskQueueKey)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
