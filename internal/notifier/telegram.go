package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/model"
)

// sender is the subset of *tgbotapi.BotAPI used for outgoing messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alerts and command replies via the Telegram Bot API.
type TelegramNotifier struct {
	bot            *tgbotapi.BotAPI
	out            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, maxRetries int, retryDelayBase time.Duration) (*TelegramNotifier, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{Timeout: 75 * time.Second, Transport: transport}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	n := newNotifier(bot, chatIDInt, maxRetries, retryDelayBase)
	n.bot = bot
	return n, nil
}

func newNotifier(out sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *TelegramNotifier {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &TelegramNotifier{
		out:            out,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Send sends a MarkdownV2 message to the configured chat with linear-backoff retry.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	return t.sendTo(ctx, t.chatID, text)
}

func (t *TelegramNotifier) sendTo(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.out.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		backoff := t.retryDelayBase * time.Duration(i+1)
		logger.Warn("telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, t.maxRetries, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", t.maxRetries, lastErr)
}

// NotifyBreakouts alerts on instruments that newly entered breakout.
func (t *TelegramNotifier) NotifyBreakouts(ctx context.Context, results []model.BreakoutResult, at time.Time) error {
	if len(results) == 0 {
		return nil
	}
	return t.Send(ctx, FormatBreakoutAlert(results, at))
}

// NotifyDegraded is sent once when the failure threshold is crossed.
func (t *TelegramNotifier) NotifyDegraded(ctx context.Context, h model.EngineHealth, cause string) error {
	return t.Send(ctx, FormatDegraded(h, cause))
}

// NotifyRecovered is sent on the first success after degradation.
func (t *TelegramNotifier) NotifyRecovered(ctx context.Context, failures int) error {
	return t.Send(ctx, FormatRecovered(failures))
}
