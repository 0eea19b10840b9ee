package notify

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"
)

// Telegram sends messages to a fixed chat through a bot. The bot is
// send-only: no poller is started.
type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// NewTelegram creates the sink. Token validation happens here, so a bad
// token fails at startup rather than inside a sweep.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chat: &tele.Chat{ID: chatID}}, nil
}

func (t *Telegram) Send(_ context.Context, message string) error {
	_, err := t.bot.Send(t.chat, message)
	return err
}
