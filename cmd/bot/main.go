package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ilhamafian/pa-agent-be/internal/ai"
	"github.com/ilhamafian/pa-agent-be/internal/bot"
	"github.com/ilhamafian/pa-agent-be/internal/config"
	"github.com/ilhamafian/pa-agent-be/internal/database"
	"github.com/ilhamafian/pa-agent-be/internal/dispatch"
	"github.com/ilhamafian/pa-agent-be/internal/notify"
	"github.com/ilhamafian/pa-agent-be/internal/repository"
	"github.com/ilhamafian/pa-agent-be/internal/scheduler"
	"github.com/ilhamafian/pa-agent-be/internal/semantic"
	"github.com/ilhamafian/pa-agent-be/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURI == "" {
		log.Fatal("DATABASE_URI is required")
	}
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	router := ai.New(cfg.OpenAIAPIKey, cfg.AIBaseURL, cfg.AIModel, cfg.AITimeout)
	log.Printf("AI router initialized (model: %s)", cfg.AIModel)

	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram API: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	stateRepo := repository.NewStateRepository(db)
	jobRepo := repository.NewJobRepository(db)
	eventRepo := repository.NewEventRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	noteRepo := repository.NewNoteRepository(db)

	retriever := semantic.NewOpenAIRetriever(cfg.OpenAIAPIKey, cfg.AIBaseURL, cfg.EmbeddingModel, noteRepo)

	notifier := notify.NewTelegram(tgAPI)
	sched := scheduler.New(jobRepo, eventRepo, notifier)
	go sched.Run(ctx)

	registry := tools.NewRegistry(tools.Deps{
		Events:    eventRepo,
		Tasks:     taskRepo,
		Notes:     noteRepo,
		Jobs:      jobRepo,
		Enqueuer:  sched,
		Retriever: retriever,
	})
	dispatcher := dispatch.New(router, registry, stateRepo)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	b := bot.New(tgAPI, userRepo, dispatcher, cfg.DefaultTimezone)
	log.Println("Starting bot...")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Bot error: %v", err)
	}
}
