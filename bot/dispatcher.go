package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"goalbot/bot/session"
	"goalbot/storage"
)

// Commands recognized while a chat is idle. Once a session is open the
// same literal text is treated as session input, except cmdCancel which
// aborts from any state.
const (
	cmdGoals  = "/goals"
	cmdCreate = "/create"
	cmdCancel = "/cancel"
)

// Reply texts sent to the chat.
const (
	msgBanner         = "Available commands:\n/goals\n/create\n/cancel"
	msgCancelled      = "Operation cancelled"
	msgNoGoals        = "No goals found"
	msgUnknownCommand = "Unknown command"
	msgChooseCategory = "Choose a category number:"
	msgBadCategory    = "Invalid category number"
	msgEnterTitle     = "Enter goal title"
	msgGoalSaved      = "Goal saved"
	msgSaveFailed     = "Could not save the goal: the category is no longer available"
)

// GoalStore is the persistence subset the dispatcher depends on. Results
// are already scoped to boards the user participates in.
type GoalStore interface {
	ListGoals(ctx context.Context, userID int64) ([]storage.Goal, error)
	ListCategories(ctx context.Context, userID int64) ([]storage.Category, error)
	CreateGoal(ctx context.Context, userID, categoryID int64, title string) (storage.Goal, error)
}

// Dispatcher interprets each inbound message against the chat's session
// state and the recognized commands. It is the only mutator of the
// session store.
type Dispatcher struct {
	store    GoalStore
	sessions session.Store
	log      *slog.Logger
}

// NewDispatcher wires a dispatcher over the goal store and session store.
func NewDispatcher(store GoalStore, sessions session.Store, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{store: store, sessions: sessions, log: log}
}

// Handle processes one message from a verified chat. userID is the linked
// application user. A command banner is sent before any state-specific
// reply, preserving the tracker's established chat behaviour.
func (d *Dispatcher) Handle(ctx context.Context, t Transport, userID int64, msg Message) error {
	if err := t.SendMessage(ctx, msg.ChatID, msgBanner); err != nil {
		return err
	}

	// /cancel aborts regardless of state.
	if msg.Text == cmdCancel {
		d.sessions.Remove(msg.ChatID)
		d.log.Debug("session cancelled",
			slog.String("event", "dispatch.cancel"),
			slog.Int64("chat_id", msg.ChatID),
		)
		return t.SendMessage(ctx, msg.ChatID, msgCancelled)
	}

	sess, active := d.sessions.Get(msg.ChatID)
	if !active {
		return d.handleIdle(ctx, t, userID, msg)
	}

	switch sess.Stage {
	case session.StageAwaitingCategory:
		return d.handleCategoryChoice(ctx, t, msg, sess)
	case session.StageAwaitingTitle:
		return d.handleTitle(ctx, t, userID, msg, sess)
	default:
		// Unknown stage means corrupted scratch state; drop it.
		d.sessions.Remove(msg.ChatID)
		return t.SendMessage(ctx, msg.ChatID, msgUnknownCommand)
	}
}

func (d *Dispatcher) handleIdle(ctx context.Context, t Transport, userID int64, msg Message) error {
	switch msg.Text {
	case cmdGoals:
		goals, err := d.store.ListGoals(ctx, userID)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", cmdGoals, err)
		}
		if len(goals) == 0 {
			return t.SendMessage(ctx, msg.ChatID, msgNoGoals)
		}
		lines := make([]string, 0, len(goals))
		for _, g := range goals {
			lines = append(lines, fmt.Sprintf("%d - %s", g.ID, g.Title))
		}
		return t.SendMessage(ctx, msg.ChatID, strings.Join(lines, "\n"))

	case cmdCreate:
		categories, err := d.store.ListCategories(ctx, userID)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", cmdCreate, err)
		}
		sess := session.Session{
			Stage:       session.StageAwaitingCategory,
			CategoryIDs: make(map[string]int64, len(categories)),
			Options:     make([]string, 0, len(categories)),
		}
		for _, c := range categories {
			sess.CategoryIDs[strconv.FormatInt(c.ID, 10)] = c.ID
			sess.Options = append(sess.Options, fmt.Sprintf("%d - %s", c.ID, c.Title))
		}
		// The flow starts even with zero categories; every selection will
		// then be rejected until the user cancels.
		if err := t.SendMessage(ctx, msg.ChatID, joinPrompt(msgChooseCategory, sess.Options)); err != nil {
			return err
		}
		d.sessions.Put(msg.ChatID, sess)
		return nil

	default:
		return t.SendMessage(ctx, msg.ChatID, msgUnknownCommand)
	}
}

func (d *Dispatcher) handleCategoryChoice(ctx context.Context, t Transport, msg Message, sess session.Session) error {
	categoryID, ok := sess.CategoryIDs[strings.TrimSpace(msg.Text)]
	if !ok {
		// Recoverable validation failure: session stays unchanged so the
		// user may retry.
		return t.SendMessage(ctx, msg.ChatID, joinPrompt(msgBadCategory, sess.Options))
	}

	sess.Stage = session.StageAwaitingTitle
	sess.SelectedCategoryID = categoryID
	if err := t.SendMessage(ctx, msg.ChatID, msgEnterTitle); err != nil {
		return err
	}
	d.sessions.Put(msg.ChatID, sess)
	return nil
}

func (d *Dispatcher) handleTitle(ctx context.Context, t Transport, userID int64, msg Message, sess session.Session) error {
	goal, err := d.store.CreateGoal(ctx, userID, sess.SelectedCategoryID, msg.Text)
	if err != nil {
		if errors.Is(err, storage.ErrIntegrity) {
			// The selected category disappeared mid-flow. Abort the
			// session and tell the user instead of failing the update.
			d.sessions.Remove(msg.ChatID)
			d.log.Warn("goal creation rejected",
				slog.String("event", "dispatch.create"),
				slog.Int64("chat_id", msg.ChatID),
				slog.Int64("category_id", sess.SelectedCategoryID),
				slog.String("err", err.Error()),
			)
			return t.SendMessage(ctx, msg.ChatID, msgSaveFailed)
		}
		return fmt.Errorf("dispatch create goal: %w", err)
	}

	d.sessions.Remove(msg.ChatID)
	d.log.Info("goal saved",
		slog.String("event", "dispatch.create"),
		slog.Int64("chat_id", msg.ChatID),
		slog.Int64("user_id", userID),
		slog.Int64("goal_id", goal.ID),
	)
	return t.SendMessage(ctx, msg.ChatID, msgGoalSaved)
}

func joinPrompt(head string, options []string) string {
	if len(options) == 0 {
		return head
	}
	return head + "\n" + strings.Join(options, "\n")
}
