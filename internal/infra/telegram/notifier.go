package telegram

import (
	"finance_assistant_bot/internal/domain/notify"

	"gopkg.in/telebot.v3"
)

// Notifier delivers engine messages to the authorized owner chat. It
// implements notify.Notifier so the engine never depends on the bot library.
type Notifier struct {
	bot    *telebot.Bot
	chatID int64
}

func NewNotifier(bot *telebot.Bot, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// Send delivers one message. The error is surfaced unchanged so callers can
// hold back dedup markers on failure.
func (n *Notifier) Send(text string) error {
	_, err := n.bot.Send(telebot.ChatID(n.chatID), text)
	return err
}

var _ notify.Notifier = (*Notifier)(nil)
