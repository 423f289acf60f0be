package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"BreakoutScreener/internal/logger"
)

// CommandHandler is called when a user command is received. It returns a MarkdownV2 reply.
type CommandHandler func(command string) string

// ListenForCommands polls for bot commands and replies in the originating chat.
// Blocks until ctx is cancelled.
func (t *TelegramNotifier) ListenForCommands(ctx context.Context, handler CommandHandler) {
	if t.bot == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			logger.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.dispatch(ctx, update, handler)
		}
	}
}

func (t *TelegramNotifier) dispatch(ctx context.Context, update tgbotapi.Update, handler CommandHandler) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	logger.Info("received command: %s", text)
	reply := handler(text)
	if reply == "" {
		return
	}
	if err := t.sendTo(ctx, update.Message.Chat.ID, reply); err != nil {
		logger.Error("send reply: %v", err)
	}
}
