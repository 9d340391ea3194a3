// Package storage provides the relational persistence layer for the goal tracker.
package storage

import "time"

// GoalStatus enumerates the lifecycle states of a goal.
type GoalStatus int

const (
	StatusToDo       GoalStatus = 1
	StatusInProgress GoalStatus = 2
	StatusDone       GoalStatus = 3
	StatusArchived   GoalStatus = 4
)

// ParticipantRole enumerates board membership roles.
type ParticipantRole int

const (
	RoleOwner  ParticipantRole = 1
	RoleWriter ParticipantRole = 2
	RoleReader ParticipantRole = 3
)

// ChatIdentity links a Telegram chat to an application user.
// UserID is nil until the verification code is consumed out-of-band.
type ChatIdentity struct {
	ID               int64     `db:"id"`
	ChatID           int64     `db:"chat_id"`
	UserID           *int64    `db:"user_id"`
	VerificationCode string    `db:"verification_code"`
	CreatedAt        time.Time `db:"created_at"`
}

// Verified reports whether the chat is linked to an application user.
func (c ChatIdentity) Verified() bool {
	return c.UserID != nil
}

// Goal is the listing projection of a goal.
type Goal struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// Category is the listing projection of a goal category.
type Category struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}
