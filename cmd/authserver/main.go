package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/contest-reminder-bot/internal/authserver"
	"github.com/example/contest-reminder-bot/internal/config"
	"github.com/example/contest-reminder-bot/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateAuthServer(); err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := authserver.New(cfg, store)
	if err := srv.Run(ctx, cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		return repository.NewPostgresStore(cfg.DatabaseURL)
	case cfg.RedisURL != "":
		return repository.NewRedisStore(cfg.RedisURL)
	default:
		return repository.NewFileStore(cfg.DataDir)
	}
}
