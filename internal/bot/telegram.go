package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Bot posts plain-text messages to a single Telegram chat.
type Bot struct {
	API     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
}

// New connects to the Bot API and checks the token. perSecond caps the
// send rate; zero or less disables throttling. timeout bounds every Bot
// API request, since tgbotapi does not take a context.
func New(token string, chatID int64, perSecond float64, timeout time.Duration) (*Bot, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, chatID, perSecond, timeout)
}

// NewWithEndpoint is New against a custom Bot API endpoint format
// (see tgbotapi.APIEndpoint), e.g. a local Bot API server.
func NewWithEndpoint(token, endpoint string, chatID int64, perSecond float64, timeout time.Duration) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %v", err)
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Bot{
		API:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Send delivers text to the configured chat. It waits for the rate
// limiter first, so it returns early if ctx is cancelled.
func (b *Bot) Send(ctx context.Context, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	msg := tgbotapi.NewMessage(b.chatID, escapeMarkdown(text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := b.API.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)
	return replacer.Replace(text)
}
