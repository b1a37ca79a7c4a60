package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	FetchBrowser = "browser"
	FetchHTTP    = "http"
)

type Config struct {
	TargetURL     string
	BaseURL       string
	ReadySelector string
	FetchMode     string
	FetchTimeout  time.Duration
	ChromeBin     string
	Headless      bool
	UserAgent     string

	TelegramBotToken string
	TelegramChatID   int64
	NotifyRate       float64
	NotifyAttempts   int
	NotifyBackoff    time.Duration
	NotifyTimeout    time.Duration

	StoreDriver string
	DatabaseURL string
	SQLitePath  string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads .env (if present) and the process environment. It only
// fails on malformed values; missing required values are reported by
// Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %v", err)
	}

	fetchTimeout, err := strconv.Atoi(getEnvWithDefault("FETCH_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %v", err)
	}

	headless, err := strconv.ParseBool(getEnvWithDefault("HEADLESS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid HEADLESS: %v", err)
	}

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		chatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %v", err)
		}
	}

	notifyRate, err := strconv.ParseFloat(getEnvWithDefault("NOTIFY_RATE", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_RATE: %v", err)
	}

	notifyAttempts, err := strconv.Atoi(getEnvWithDefault("NOTIFY_ATTEMPTS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_ATTEMPTS: %v", err)
	}

	notifyBackoff, err := strconv.Atoi(getEnvWithDefault("NOTIFY_BACKOFF", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_BACKOFF: %v", err)
	}

	notifyTimeout, err := strconv.Atoi(getEnvWithDefault("NOTIFY_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %v", err)
	}

	targetURL := os.Getenv("TARGET_URL")
	baseURL := os.Getenv("LISTING_BASE_URL")
	if baseURL == "" {
		baseURL = siteRoot(targetURL)
	}

	return &Config{
		TargetURL:     targetURL,
		BaseURL:       baseURL,
		ReadySelector: getEnvWithDefault("READY_SELECTOR", "article"),
		FetchMode:     strings.ToLower(getEnvWithDefault("FETCH_MODE", FetchBrowser)),
		FetchTimeout:  time.Duration(fetchTimeout) * time.Second,
		ChromeBin:     os.Getenv("GOOGLE_CHROME_BIN"),
		Headless:      headless,
		UserAgent:     getEnvWithDefault("USER_AGENT", defaultUserAgent),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   chatID,
		NotifyRate:       notifyRate,
		NotifyAttempts:   notifyAttempts,
		NotifyBackoff:    time.Duration(notifyBackoff) * time.Second,
		NotifyTimeout:    time.Duration(notifyTimeout) * time.Second,

		StoreDriver: strings.ToLower(getEnvWithDefault("STORE_DRIVER", StorePostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnvWithDefault("SQLITE_PATH", "listings.db"),
	}, nil
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.TargetURL == "" {
		errs = append(errs, errors.New("TARGET_URL is required"))
	} else if u, err := url.Parse(c.TargetURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("TARGET_URL must be an absolute URL, got %q", c.TargetURL))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("LISTING_BASE_URL must be an absolute URL, got %q", c.BaseURL))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.FetchMode != FetchBrowser && c.FetchMode != FetchHTTP {
		errs = append(errs, fmt.Errorf("FETCH_MODE must be %q or %q, got %q", FetchBrowser, FetchHTTP, c.FetchMode))
	}
	if c.TelegramBotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required"))
	}
	if c.NotifyAttempts < 1 {
		errs = append(errs, errors.New("NOTIFY_ATTEMPTS must be at least 1"))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("NOTIFY_TIMEOUT must be positive"))
	}
	if c.NotifyBackoff < 0 {
		errs = append(errs, errors.New("NOTIFY_BACKOFF must not be negative"))
	}

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreSQLite, c.StoreDriver))
	}

	return errors.Join(errs...)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// siteRoot returns scheme://host of rawURL, or "" if it has neither.
func siteRoot(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
