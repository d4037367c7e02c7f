package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"product-dispatch/core"
)

func main() {
	cfg := core.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.EnsureProductSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure product schema: %v", err)
	}

	redisClient, err := core.NewRedisClientRetry(ctx, cfg.RedisURL, cfg.BrokerMaxAttempts, cfg.BrokerRetryDelay)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	codec, err := core.NewTokenCodec(cfg)
	if err != nil {
		log.Fatalf("failed to build token codec: %v", err)
	}

	queue := core.NewTaskQueue(redisClient)
	products := core.NewPgProductRepository(db)

	consumerID := core.NewConsumerID()
	hostname, _ := os.Hostname()
	state := core.NewHeartbeatState(consumerID, hostname)
	go state.Start(ctx, redisClient)

	go core.RunReclaimer(ctx, queue, 15*time.Second)

	consumer := core.NewTaskConsumer(queue, codec, products, state, cfg)
	log.Printf("worker started. id=%s queue=%s", consumerID, core.TaskQueueKey)
	consumer.Run(ctx)
	log.Printf("worker stopped")
}
