package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shizoid/shizoid/internal/config"
	"github.com/shizoid/shizoid/internal/database"
	"github.com/shizoid/shizoid/internal/identity"
	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/migrator"
	"github.com/shizoid/shizoid/internal/nats"
	"github.com/shizoid/shizoid/internal/queue"
	"github.com/shizoid/shizoid/internal/repository"
	"github.com/shizoid/shizoid/internal/workers"
	"github.com/shizoid/shizoid/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting worker pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	if err := mig.Up(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	nc, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer nc.Close()

	if err := nc.EnsureStream(ctx, queue.StreamName, queue.Subjects); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure chats stream")
	}

	chatsRepo := repository.NewChatsRepository(db.GORM)
	participationsRepo := repository.NewParticipationsRepository(db.GORM)
	pub := queue.NewPublisher(nc)

	// no outbound client here: workers never talk back to the source
	svc := identity.NewService(chatsRepo, pub, nil, log)

	updater := workers.NewUpdater(svc, log)
	destroyer := workers.NewDestroyer(chatsRepo, log)
	linker := workers.NewLinker(chatsRepo, participationsRepo, log)

	lanes := []struct {
		consumer string
		subject  string
		handler  func([]byte) error
	}{
		{queue.ConsumerUpdater, queue.SubjectMetadataSync, updater.Handle},
		{queue.ConsumerDestroyer, queue.SubjectDeletion, destroyer.Handle},
		{queue.ConsumerLinker, queue.SubjectParticipantLink, linker.Handle},
	}
	for _, lane := range lanes {
		if err := nc.Subscribe(ctx, queue.StreamName, lane.consumer, lane.subject, lane.handler); err != nil {
			log.Fatal().Err(err).Str("lane", lane.subject).Msg("failed to start consumer")
		}
		log.Info().Str("lane", lane.subject).Msg("consumer started")
	}

	<-ctx.Done()
	log.Info().Msg("shut down")
}
