package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramOptions configures the Telegram transport.
type TelegramOptions struct {
	Token string
	// LongPollTimeout holds the getUpdates connection open server-side; 0 -> short poll.
	LongPollTimeout time.Duration
	// BatchLimit caps updates per fetch; 0 -> API default (100).
	BatchLimit int
}

// Telegram implements Transport over the Bot API using a telebot client.
type Telegram struct {
	bot     *tele.Bot
	timeout time.Duration
	limit   int
}

// NewTelegram authenticates against the Bot API and returns the transport.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	settings := tele.Settings{
		Token:  opts.Token,
		Client: buildHTTPClient(opts.LongPollTimeout),
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return &Telegram{
		bot:     b,
		timeout: opts.LongPollTimeout,
		limit:   opts.BatchLimit,
	}, nil
}

// GetUpdates fetches the next batch of message updates at the given offset.
// The call blocks up to the configured long-poll timeout.
func (t *Telegram) GetUpdates(ctx context.Context, offset int) ([]Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := struct {
		Offset         int      `json:"offset"`
		Limit          int      `json:"limit,omitempty"`
		Timeout        int      `json:"timeout,omitempty"`
		AllowedUpdates []string `json:"allowed_updates,omitempty"`
	}{
		Offset:         offset,
		Limit:          t.limit,
		Timeout:        int(t.timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}

	data, err := t.bot.Raw("getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}

	var resp struct {
		Result []tele.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}

	updates := make([]Update, 0, len(resp.Result))
	for _, u := range resp.Result {
		upd := Update{ID: u.ID}
		if u.Message != nil && u.Message.Chat != nil {
			upd.Message = Message{
				ChatID: u.Message.Chat.ID,
				Text:   u.Message.Text,
			}
		}
		updates = append(updates, upd)
	}
	return updates, nil
}

// SendMessage delivers a plain text message to the chat.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return nil
}
