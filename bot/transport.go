// Package bot implements the conversation engine: a long-polling update
// loop, per-chat session state machine, and command dispatch.
package bot

import "context"

// Message is one inbound chat message.
type Message struct {
	ChatID int64
	Text   string
}

// Update is one inbound update envelope. IDs are strictly increasing
// across the update stream and drive the poll offset.
type Update struct {
	ID      int
	Message Message
}

// Transport fetches inbound updates and delivers outbound replies.
// GetUpdates returns updates with ID >= offset ordered ascending; the
// result may be empty.
type Transport interface {
	GetUpdates(ctx context.Context, offset int) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}
