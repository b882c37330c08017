package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oatsaysai/debt-reminder/internal/api"
	"github.com/oatsaysai/debt-reminder/internal/composer"
	"github.com/oatsaysai/debt-reminder/internal/config"
	"github.com/oatsaysai/debt-reminder/internal/db"
	"github.com/oatsaysai/debt-reminder/internal/discord"
	"github.com/oatsaysai/debt-reminder/internal/reminder"
	"github.com/oatsaysai/debt-reminder/internal/scheduler"
	"github.com/oatsaysai/debt-reminder/internal/telegram"
	"github.com/oatsaysai/debt-reminder/pkg/llm"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	pool, err := db.Connect(ctx, cfg.PostgreSQL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	store := db.NewStore(pool)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Scheduler.Timezone, err)
	}

	// Message composer, falling back to the template when no API key is set
	var completer composer.Completer
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		log.Printf("LLM client initialized with model %s at %s", cfg.LLM.Model, cfg.LLM.BaseURL)
	}
	comp := composer.New(completer, llm.Sampling{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, loc)

	// Delivery
	var sender reminder.Sender
	switch cfg.Delivery.Provider {
	case config.ProviderDiscord:
		s, closeSession, err := discord.Connect(cfg.DiscordBot.Token)
		if err != nil {
			log.Fatalf("Failed to initialize Discord bot: %v", err)
		}
		defer closeSession()
		sender = s
	default:
		s, err := telegram.Connect(cfg.Telegram.BotToken)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram bot: %v", err)
		}
		sender = s
	}

	retry, err := reminder.ParseRetryPolicy(cfg.Reminder.RetryPolicy)
	if err != nil {
		log.Fatalf("Invalid reminder config: %v", err)
	}
	engine := reminder.NewEngine(store, comp, sender, reminder.Config{
		Kinds:       cfg.Reminder.Kinds,
		RetryPolicy: retry,
		Location:    loc,
	})

	sched, err := scheduler.New(engine, scheduler.Config{
		TimeOfDay:    cfg.Scheduler.TimeOfDay,
		Timezone:     cfg.Scheduler.Timezone,
		RunOnStartup: cfg.Scheduler.RunOnStartup,
	})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := api.NewServer(sched, engine, store)
	server.Start(cfg.Server.Addr())

	// Handle termination signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Debt reminder service is now running. Press CTRL+C to exit.")
	<-signalChan
	log.Println("Received termination signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	log.Println("Debt reminder service shut down")
}
