package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"goalbot/core/logger"
)

// PollerOptions tunes the update supervisor loop.
type PollerOptions struct {
	// BackoffBase is the delay after the first failed fetch; it doubles
	// per consecutive failure up to BackoffMax and resets on success.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Poller drives the engine: it pulls update batches and feeds them one at
// a time through identity resolution and dispatch, advancing a
// monotonically increasing offset. Updates are processed strictly
// sequentially; per-chat ordering follows from the single worker.
type Poller struct {
	transport  Transport
	resolver   *Resolver
	dispatcher *Dispatcher
	opts       PollerOptions
	log        *slog.Logger

	offset int
}

// NewPoller assembles the polling loop.
func NewPoller(t Transport, r *Resolver, d *Dispatcher, opts PollerOptions, log *slog.Logger) *Poller {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		transport:  t,
		resolver:   r,
		dispatcher: d,
		opts:       opts,
		log:        log,
	}
}

// Offset returns the next poll offset.
func (p *Poller) Offset() int {
	return p.offset
}

// Run polls for updates until the context is cancelled. Fetch failures are
// retried with exponential backoff instead of terminating the loop.
func (p *Poller) Run(ctx context.Context) error {
	backoff := time.Duration(0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.transport.GetUpdates(ctx, p.offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			backoff = p.nextBackoff(backoff)
			p.log.Warn("update fetch failed",
				slog.String("event", "poll.fetch"),
				slog.Int("offset", p.offset),
				slog.Duration("backoff", backoff),
				slog.String("err", err.Error()),
			)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}
		backoff = 0

		for _, u := range updates {
			// Advance the offset before handling so a crash mid-update
			// does not replay it on restart.
			p.offset = u.ID + 1
			p.handle(ctx, u)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (p *Poller) handle(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic recovered",
				slog.String("event", "poll.panic"),
				slog.Int("update_id", u.ID),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if u.Message.ChatID == 0 {
		p.log.Debug("update skipped",
			slog.String("event", "poll.skip"),
			slog.Int("update_id", u.ID),
		)
		return
	}

	chatID := u.Message.ChatID
	rid := logger.BuildRID(u.ID, chatID)
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithUpdateMeta(ctx, u.ID, chatID)

	start := time.Now()
	err := p.process(ctx, u)
	p.log.Debug("update handled",
		slog.String("event", "poll.update"),
		slog.String("status", logger.Status(err)),
		slog.String("rid", rid),
		slog.Int("update_id", u.ID),
		slog.Int64("chat_id", chatID),
		slog.String("payload", logger.SanitizeLimit(u.Message.Text, 256)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		p.log.Error("update failed",
			slog.String("event", "poll.update"),
			slog.String("rid", rid),
			slog.Int("update_id", u.ID),
			slog.String("err", err.Error()),
		)
	}
}

func (p *Poller) process(ctx context.Context, u Update) error {
	chatID := u.Message.ChatID

	identity, _, err := p.resolver.Resolve(ctx, chatID)
	if err != nil {
		return err
	}

	// Unverified chats only ever receive a fresh verification code; no
	// command is processed until linkage happens out-of-band.
	if !identity.Verified() {
		code, err := p.resolver.IssueCode(ctx, chatID)
		if err != nil {
			return err
		}
		return p.transport.SendMessage(ctx, chatID, "Your verification code: "+code)
	}

	return p.dispatcher.Handle(ctx, p.transport, *identity.UserID, u.Message)
}

func (p *Poller) nextBackoff(current time.Duration) time.Duration {
	if current <= 0 {
		return p.opts.BackoffBase
	}
	next := current * 2
	if next > p.opts.BackoffMax {
		return p.opts.BackoffMax
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
