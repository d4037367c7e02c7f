package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"product-dispatch/core"
)

func main() {
	cfg := core.Load()
	if os.Getenv("PORT") == "" {
		cfg.Port = "3001"
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "authsvc.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.EnsureUserSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure user schema: %v", err)
	}

	codec, err := core.NewTokenCodec(cfg)
	if err != nil {
		log.Fatalf("failed to build token codec: %v", err)
	}

	userRepo := core.NewPgUserRepository(db, cfg.DBEncryptionKey)
	authService := core.NewRepositoryAuthService(userRepo, codec)

	router := core.NewAuthRouter(authService)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting auth service on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
