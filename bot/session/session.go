// Package session provides the per-chat conversation state store for the
// multi-step goal creation flow. It is scratch state: entries are expected
// to be lost on process restart.
package session

// Stage identifies a step of the goal creation dialogue.
type Stage int

const (
	// StageAwaitingCategory expects the user to pick a category id.
	StageAwaitingCategory Stage = iota + 1
	// StageAwaitingTitle expects free-form text used as the goal title.
	StageAwaitingTitle
)

// Session tracks a chat's progress through the goal creation dialogue.
// Absence of a session means the chat is idle.
type Session struct {
	Stage Stage
	// CategoryIDs maps valid selection inputs to category ids, captured
	// at session start.
	CategoryIDs map[string]int64
	// Options holds the display lines re-sent on an invalid selection.
	Options []string
	// SelectedCategoryID is set when leaving StageAwaitingCategory.
	SelectedCategoryID int64
}

// Store owns sessions keyed by chat id. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(chatID int64) (Session, bool)
	// Put replaces the session wholesale.
	Put(chatID int64, s Session)
	// Remove is idempotent; removing an absent session is a no-op.
	Remove(chatID int64)
}
