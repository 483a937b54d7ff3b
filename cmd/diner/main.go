package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-diner-live.git/internal/config"
	"github.com/ariefcatur/go-diner-live.git/internal/consumable"
	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/events"
	"github.com/ariefcatur/go-diner-live.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-diner-live.git/internal/kafka"
	"github.com/ariefcatur/go-diner-live.git/internal/kitchen"
	"github.com/ariefcatur/go-diner-live.git/internal/master"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/runner"
	"github.com/ariefcatur/go-diner-live.git/internal/seats"
	"github.com/ariefcatur/go-diner-live.git/internal/service"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := config.Load()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Redis = shared state store
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	st := store.NewRedis(rdb)

	// Kafka producer = broadcast fan-out
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Logger)
	prod.Start(ctx)
	emitter := &events.Kafka{Producer: prod}

	// Komponen core
	registry := &seats.Registry{
		Store: st, Emitter: emitter, Service: cfg.ServiceName,
		SeatsNum: cfg.SeatsPerRoom, Log: log.With().Str("comp", "seats").Logger(),
	}
	decay := &consumable.Manager{
		Store: st, Emitter: emitter, Service: cfg.ServiceName,
		TickPeriod: cfg.DecayTick, RefreshEvery: cfg.DecayRefreshEvery,
		Log: log.With().Str("comp", "consumable").Logger(),
	}
	engine := &kitchen.Engine{
		Store: st, Emitter: emitter, Seats: registry, Sink: decay,
		Service: cfg.ServiceName, Log: log.With().Str("comp", "kitchen").Logger(),
	}
	var gen master.ReplyGenerator
	if cfg.ReplyURL != "" {
		gen = master.NewHTTPGenerator(cfg.ReplyURL)
	}
	sched := &master.Scheduler{
		Store: st, Emitter: emitter, Gen: gen, Service: cfg.ServiceName,
		DisplayName: cfg.MasterName, MinInterval: cfg.ReplyMinInterval,
		ThinkingCeiling: cfg.ThinkingCeiling, ConversingWindow: cfg.ConversingWindow,
		CleaningEvery: cfg.CleaningEvery, CleaningFor: cfg.CleaningFor,
		Log: log.With().Str("comp", "master").Logger(),
	}

	svc := &service.Service{
		Seats: registry, Kitchen: engine, Consumables: decay, Master: sched,
		Rooms: cfg.Rooms, Log: log.Logger,
	}
	if err := svc.ReinitializeSystem(ctx); err != nil {
		log.Fatal().Err(err).Msg("room init failed")
	}

	// Consumer chat dari transport layer
	chatWorkers := 4
	chatCons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-chat", diner.TopicChatOccurred, chatWorkers, log.Logger)
	go func() {
		if err := chatCons.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			return sched.HandleChatEvent(ctx, m.Value)
		}); err != nil {
			log.Error().Err(err).Msg("chat consumer exit")
			cancel()
		}
	}()

	// Worker periodik di bawah supervisor
	sup := runner.NewSupervisor(log.Logger).Add(
		&kitchen.Worker{Engine: engine, Rooms: cfg.Rooms, Period: cfg.KitchenTick, Log: log.Logger},
		&consumable.Worker{Manager: decay, Log: log.Logger},
		&master.Worker{Scheduler: sched, Rooms: cfg.Rooms, Period: cfg.MasterTick, Log: log.Logger},
	)
	go sup.Run(ctx)

	// HTTP surface
	router := httpx.NewRouter()
	(&httpx.DinerHandler{Svc: svc}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("diner core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	prod.WaitClosed() // producer flush & close dipicu ctx.Done()
	log.Info().Msg("bye")
}
