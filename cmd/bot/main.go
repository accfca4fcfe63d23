package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/example/contest-reminder-bot/internal/app"
	"github.com/example/contest-reminder-bot/internal/config"
	"github.com/example/contest-reminder-bot/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	application, err := app.New(cfg, store)
	if err != nil {
		log.Fatal(err)
	}
	if err := application.Run(context.Background()); err != nil {
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
