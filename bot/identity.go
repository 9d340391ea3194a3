package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"goalbot/core/logger"
	"goalbot/storage"
)

// IdentityStore is the persistence subset the resolver depends on.
type IdentityStore interface {
	FindOrCreateIdentity(ctx context.Context, chatID int64) (storage.ChatIdentity, bool, error)
	SetVerificationCode(ctx context.Context, chatID int64, code string) error
}

// Resolver maps chat ids to application users and issues verification
// codes for chats that are not linked yet.
type Resolver struct {
	store IdentityStore
	log   *slog.Logger
}

// NewResolver builds a Resolver over the given identity store.
func NewResolver(store IdentityStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, log: log}
}

// Resolve looks up or lazily creates the identity for a chat. First
// contact from any chat always yields a record.
func (r *Resolver) Resolve(ctx context.Context, chatID int64) (storage.ChatIdentity, bool, error) {
	identity, created, err := r.store.FindOrCreateIdentity(ctx, chatID)
	if err != nil {
		return storage.ChatIdentity{}, false, fmt.Errorf("resolve chat %d: %w", chatID, err)
	}
	return identity, created, nil
}

// IssueCode generates a fresh verification code, persists it on the chat
// identity, and returns it. Every call produces a different code; any
// previously issued code is overwritten.
func (r *Resolver) IssueCode(ctx context.Context, chatID int64) (string, error) {
	code := ulid.Make().String()
	if err := r.store.SetVerificationCode(ctx, chatID, code); err != nil {
		return "", fmt.Errorf("issue code for chat %d: %w", chatID, err)
	}
	r.log.Info("verification code issued",
		slog.String("event", "identity.verify_code"),
		slog.String("rid", logger.RIDFrom(ctx)),
		slog.Int("update_id", logger.UpdateIDFrom(ctx)),
		slog.Int64("chat_id", chatID),
	)
	return code, nil
}
