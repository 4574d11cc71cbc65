package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"

	"github.com/shizoid/shizoid/internal/chatctx"
	"github.com/shizoid/shizoid/internal/config"
	"github.com/shizoid/shizoid/internal/database"
	"github.com/shizoid/shizoid/internal/dedup"
	"github.com/shizoid/shizoid/internal/health"
	"github.com/shizoid/shizoid/internal/identity"
	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/migrator"
	"github.com/shizoid/shizoid/internal/nats"
	"github.com/shizoid/shizoid/internal/queue"
	"github.com/shizoid/shizoid/internal/repository"
	"github.com/shizoid/shizoid/internal/telegram"
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
	log.Info().Msg("starting identity & context service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// migrations first, everything else assumes the schema
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
	kv, err := nc.EnsureKeyValue(ctx, chatctx.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to ensure context bucket")
	}

	chatsRepo := repository.NewChatsRepository(db.GORM)
	pub := queue.NewPublisher(nc)
	buffer := chatctx.New(kv, cfg.ContextSize)
	filter := dedup.New(db.GORM)

	if cfg.BotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is required")
	}

	var observer *telegram.Observer
	b, err := tgbot.New(cfg.BotToken,
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
			observer.HandleUpdate(ctx, b, update)
		}))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot client")
	}

	leaver := telegram.NewLeaver(b, cfg.LeaveRPS)
	svc := identity.NewService(chatsRepo, pub, leaver, log)
	observer = telegram.NewObserver(svc, buffer, filter, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: health.NewRouter(db, nc),
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("ops endpoints listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops server failed")
			cancel()
		}
	}()

	log.Info().Msg("listening for updates")
	b.Start(ctx)

	_ = srv.Shutdown(context.Background())
	log.Info().Msg("shut down")
}
