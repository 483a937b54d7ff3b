package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ariefcatur/go-diner-live.git/internal/archive"
	"github.com/ariefcatur/go-diner-live.git/internal/config"
	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	kafkax "github.com/ariefcatur/go-diner-live.git/internal/kafka"
	"github.com/ariefcatur/go-diner-live.git/internal/postgres"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &archive.Service{
		Repo:        &archive.Repo{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-archiver",
		Log:         log.Logger,
	}

	group := os.Getenv("ARCHIVER_GROUP")
	if group == "" {
		group = "diner-archiver"
	}
	workers := mustAtoi(os.Getenv("ARCHIVER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, diner.TopicOrderFinalized, workers, log.Logger)

	log.Info().Str("group", group).Str("topic", diner.TopicOrderFinalized).Int("workers", workers).
		Msg("archiver consumer started")
	if err := cons.Start(ctx, svc.HandleOrderFinalized); err != nil {
		log.Error().Err(err).Msg("consumer exit")
	}
}
