package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/erkineren/listing-monitor/internal/bot"
	"github.com/erkineren/listing-monitor/internal/config"
	"github.com/erkineren/listing-monitor/internal/monitor"
	"github.com/erkineren/listing-monitor/internal/notify"
	"github.com/erkineren/listing-monitor/internal/scraper"
	"github.com/erkineren/listing-monitor/internal/store"
	"github.com/erkineren/listing-monitor/internal/store/postgres"
	"github.com/erkineren/listing-monitor/internal/store/sqlite"
)

// main runs a single cycle. Recurrence belongs to the scheduler (cron,
// systemd timer, Heroku Scheduler); no state is kept between runs except
// the listing store.
func main() {
	log.Println("Starting listing monitor...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Configuration loaded successfully. Target: %s, fetch mode: %s, fetch timeout: %v", cfg.TargetURL, cfg.FetchMode, cfg.FetchTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open, err := storeOpener(cfg)
	if err != nil {
		log.Fatalf("Failed to configure store: %v", err)
	}

	fetcher, err := scraper.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize fetcher: %v", err)
	}

	log.Println("Initializing Telegram bot...")
	telegramBot, err := bot.New(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotifyRate, cfg.NotifyTimeout)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}
	log.Printf("Telegram bot @%s initialized successfully", telegramBot.API.Self.UserName)

	m := monitor.New(fetcher, open, notify.New(telegramBot), monitor.Options{
		NotifyAttempts: cfg.NotifyAttempts,
		NotifyBackoff:  cfg.NotifyBackoff,
	})

	res := m.RunCycle(ctx)
	res.Report(os.Stdout)

	if res.Aborted() {
		os.Exit(1)
	}
}

func storeOpener(cfg *config.Config) (store.Opener, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		log.Printf("Using database: %s", maskDatabaseURL(cfg.DatabaseURL))
		return postgres.Opener(cfg.DatabaseURL), nil
	case config.StoreSQLite:
		log.Printf("Using database file: %s", cfg.SQLitePath)
		return sqlite.Opener(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func maskDatabaseURL(url string) string {
	// Simple masking to hide sensitive information while keeping the structure visible
	return regexp.MustCompile(`://[^:]+:[^@]+@`).ReplaceAllString(url, "://*****:*****@")
}
