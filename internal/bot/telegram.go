package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram long-polls the Bot API and answers through a Dispatcher.
type Telegram struct {
	api *tgbotapi.BotAPI
	log *slog.Logger
}

// NewTelegram authenticates with token.
func NewTelegram(token string, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{api: api, log: logger}, nil
}

// Username is the bot's handle as Telegram knows it.
func (t *Telegram) Username() string { return t.api.Self.UserName }

// Run polls for updates and answers them with d until ctx is done.
func (t *Telegram) Run(ctx context.Context, d *Dispatcher) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	t.log.Info("telegram bot polling", "username", t.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			t.handle(ctx, d, upd)
		}
	}
}

func (t *Telegram) handle(ctx context.Context, d *Dispatcher, upd tgbotapi.Update) {
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}
	in := toMessage(m)
	t.log.Debug("message received", "chat_id", in.ChatID, "chat_type", in.ChatType)
	reply, ok := d.Handle(ctx, in)
	if !ok {
		return
	}
	out := tgbotapi.NewMessage(m.Chat.ID, reply)
	out.ReplyToMessageID = m.MessageID
	if _, err := t.api.Send(out); err != nil {
		t.log.Error("telegram send failed", "chat_id", m.Chat.ID, "err", err)
	}
}

func toMessage(m *tgbotapi.Message) Message {
	return Message{
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		ChatType:  m.Chat.Type,
		Text:      m.Text,
		FirstName: m.From.FirstName,
	}
}
