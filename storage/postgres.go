package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"goalbot/core/logger"
)

// ErrIntegrity indicates a write violated a relational constraint,
// e.g. goal creation against a deleted category.
var ErrIntegrity = errors.New("storage: integrity violation")

// Postgres implements the persistence queries over a sqlx connection pool.
type Postgres struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	return &Postgres{db: db, log: log}
}

// FindOrCreateIdentity looks up the chat identity, lazily creating an
// unverified record on first contact. The second return value reports
// whether the record was created by this call.
func (p *Postgres) FindOrCreateIdentity(ctx context.Context, chatID int64) (ChatIdentity, bool, error) {
	var identity ChatIdentity

	res, err := p.db.ExecContext(ctx,
		`INSERT INTO tg_users (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`,
		chatID,
	)
	if err != nil {
		return ChatIdentity{}, false, fmt.Errorf("insert identity: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return ChatIdentity{}, false, fmt.Errorf("insert identity: %w", err)
	}

	err = p.db.GetContext(ctx, &identity,
		`SELECT id, chat_id, user_id, verification_code, created_at FROM tg_users WHERE chat_id = $1`,
		chatID,
	)
	if err != nil {
		return ChatIdentity{}, false, fmt.Errorf("select identity: %w", err)
	}

	if inserted > 0 {
		p.log.Info("identity created",
			slog.String("event", "identity.create"),
			slog.Int64("chat_id", chatID),
		)
	}
	return identity, inserted > 0, nil
}

// SetVerificationCode overwrites the verification code of a chat identity.
func (p *Postgres) SetVerificationCode(ctx context.Context, chatID int64, code string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE tg_users SET verification_code = $2 WHERE chat_id = $1`,
		chatID, code,
	)
	if err != nil {
		return fmt.Errorf("update verification code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification code: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update verification code: chat %d not found", chatID)
	}
	return nil
}

// ListGoals returns non-archived goals in non-deleted categories across
// boards where the user participates.
func (p *Postgres) ListGoals(ctx context.Context, userID int64) ([]Goal, error) {
	start := time.Now()
	var goals []Goal
	err := p.db.SelectContext(ctx, &goals,
		`SELECT DISTINCT g.id, g.title
		   FROM goals g
		   JOIN goal_categories c ON c.id = g.category_id
		   JOIN board_participants bp ON bp.board_id = c.board_id
		  WHERE bp.user_id = $1
		    AND c.is_deleted = FALSE
		    AND g.status <> $2
		  ORDER BY g.id`,
		userID, StatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	p.log.Debug("goals listed",
		slog.String("event", "goals.list"),
		slog.String("rid", logger.RIDFrom(ctx)),
		slog.Int64("user_id", userID),
		slog.Int("count", len(goals)),
		slog.Duration("duration", logger.Took(start)),
	)
	return goals, nil
}

// ListCategories returns non-deleted categories across boards where the
// user participates.
func (p *Postgres) ListCategories(ctx context.Context, userID int64) ([]Category, error) {
	start := time.Now()
	var categories []Category
	err := p.db.SelectContext(ctx, &categories,
		`SELECT DISTINCT c.id, c.title
		   FROM goal_categories c
		   JOIN board_participants bp ON bp.board_id = c.board_id
		  WHERE bp.user_id = $1
		    AND c.is_deleted = FALSE
		  ORDER BY c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	p.log.Debug("categories listed",
		slog.String("event", "categories.list"),
		slog.String("rid", logger.RIDFrom(ctx)),
		slog.Int64("user_id", userID),
		slog.Int("count", len(categories)),
		slog.Duration("duration", logger.Took(start)),
	)
	return categories, nil
}

// CreateGoal inserts a new goal with default todo status. Referential
// failures (stale or deleted category) surface as ErrIntegrity.
func (p *Postgres) CreateGoal(ctx context.Context, userID, categoryID int64, title string) (Goal, error) {
	var goal Goal
	err := p.db.GetContext(ctx, &goal,
		`INSERT INTO goals (user_id, category_id, title, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, title`,
		userID, categoryID, title, StatusToDo,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
			return Goal{}, fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		return Goal{}, fmt.Errorf("create goal: %w", err)
	}
	p.log.Info("goal created",
		slog.String("event", "goals.create"),
		slog.String("rid", logger.RIDFrom(ctx)),
		slog.Int64("user_id", userID),
		slog.Int64("category_id", categoryID),
		slog.Int64("goal_id", goal.ID),
	)
	return goal, nil
}
