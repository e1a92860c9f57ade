// Package bot answers Mastodon mentions from the snapshot archive.
//
// Each cycle fetches mentions, then handles them one at a time in platform
// order: filter, claim, answer, post, commit. A notification is committed to
// the ledger only after its reply is posted, so a crash or a failed post
// leaves it to be retried.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/csheth/ragtoxiv/internal/ledger"
	"github.com/csheth/ragtoxiv/internal/logging"
	"github.com/csheth/ragtoxiv/internal/mention"
	"github.com/csheth/ragtoxiv/internal/metrics"
	"github.com/csheth/ragtoxiv/internal/pipeline"
	"github.com/csheth/ragtoxiv/internal/retry"
)

const (
	DefaultPollInterval = 60 * time.Second
	DefaultPostLimit    = 5000
	DefaultPostMargin   = 100
	DefaultPostPacing   = 5 * time.Second
)

// Platform is the social network the bot lives on.
type Platform interface {
	FetchMentions(ctx context.Context, sinceID string) ([]mention.Notification, error)
	PostReply(ctx context.Context, reply mention.Reply) (string, error)
}

// Config tunes the runner.
type Config struct {
	// BotAcct is the account mentions must address.
	BotAcct      string
	DryRun       bool
	PollInterval time.Duration
	// PostLimit is the platform's status length; PostMargin is kept free.
	PostLimit  int
	PostMargin int
	// PostPacing is the minimum gap between two posts.
	PostPacing time.Duration
	PostRetry  retry.Policy
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PostLimit <= 0 {
		c.PostLimit = DefaultPostLimit
	}
	if c.PostMargin < 0 || c.PostMargin >= c.PostLimit {
		c.PostMargin = DefaultPostMargin
	}
	if c.PostPacing < 0 {
		c.PostPacing = 0
	}
	return c
}

// Stats summarises one cycle.
type Stats struct {
	CycleID  string
	Fetched  int
	Replied  int
	Skipped  int
	Failed   int
	Released int
}

// Runner owns the mention loop.
type Runner struct {
	platform     Platform
	ledger       ledger.Ledger
	filter       *mention.Filter
	responder    *pipeline.Responder
	settings     pipeline.Settings
	cfg          Config
	pacer        *rate.Limiter
	interactions *logging.InteractionLog
	logger       *zap.Logger

	sinceID string
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithInteractionLog records every delivered reply.
func WithInteractionLog(l *logging.InteractionLog) Option {
	return func(r *Runner) { r.interactions = l }
}

// New builds a runner. settings are fixed for its lifetime.
func New(platform Platform, l ledger.Ledger, responder *pipeline.Responder, settings pipeline.Settings, cfg Config, opts ...Option) *Runner {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.PostPacing > 0 {
		limit = rate.Every(cfg.PostPacing)
	}
	r := &Runner{
		platform:  platform,
		ledger:    l,
		filter:    mention.NewFilter(cfg.BotAcct, l),
		responder: responder,
		settings:  settings,
		cfg:       cfg,
		pacer:     rate.NewLimiter(limit, 1),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunDaemon polls until ctx is cancelled. Cancellation is a clean shutdown
// and returns nil.
func (r *Runner) RunDaemon(ctx context.Context) error {
	r.logger.Info("daemon started",
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Bool("dry_run", r.cfg.DryRun),
		zap.String("category", r.settings.Category),
		zap.String("mode", string(r.settings.Mode)))
	for {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("poll cycle failed", zap.Error(err))
		}
		if !sleep(ctx, r.cfg.PollInterval) {
			break
		}
	}
	r.logger.Info("daemon stopped")
	return nil
}

// sleep waits for d and reports whether ctx is still live afterwards.
func sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

// RunOnce runs one cycle. It fails only when mentions cannot be fetched or
// ctx is cancelled; per-notification problems are logged and counted.
func (r *Runner) RunOnce(ctx context.Context) (Stats, error) {
	stats := Stats{CycleID: uuid.NewString()}
	logger := r.logger.With(zap.String("cycle_id", stats.CycleID))

	notifications, err := r.platform.FetchMentions(ctx, r.sinceID)
	if err != nil {
		metrics.RecordPoll("fetch_error")
		return stats, fmt.Errorf("fetch mentions: %w", err)
	}
	stats.Fetched = len(notifications)

	cursor := r.sinceID
	for _, n := range notifications {
		if err := ctx.Err(); err != nil {
			metrics.RecordPoll("cancelled")
			return stats, err
		}
		outcome, err := r.handle(ctx, logger.With(zap.String("notification_id", n.ID)), n)
		switch {
		case err != nil && ctx.Err() != nil:
			metrics.RecordPoll("cancelled")
			return stats, ctx.Err()
		case outcome == outcomeReleased:
			stats.Released++
		case err != nil:
			stats.Failed++
		case outcome == outcomeIgnored || isSkip(outcome):
			stats.Skipped++
		default:
			stats.Replied++
		}
		if laterID(n.ID, cursor) {
			cursor = n.ID
		}
	}
	// A released notification must be fetched again next cycle.
	if stats.Released == 0 {
		r.sinceID = cursor
	}
	metrics.RecordPoll("ok")
	metrics.LedgerSize.Set(float64(r.ledger.Len()))
	logger.Info("cycle finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("replied", stats.Replied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("released", stats.Released),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

const (
	outcomeIgnored  = "ignored"
	outcomeReleased = "released"
	outcomeDryRun   = "dry_run"
)

func isSkip(outcome string) bool {
	switch outcome {
	case ledger.OutcomeSkippedIndirect, ledger.OutcomeSkippedSelf, ledger.OutcomeSkippedVisibility:
		return true
	}
	return false
}

func skipOutcome(reason mention.Reason) (string, bool) {
	switch reason {
	case mention.ReasonVisibility:
		return ledger.OutcomeSkippedVisibility, true
	case mention.ReasonIndirect:
		return ledger.OutcomeSkippedIndirect, true
	case mention.ReasonSelf:
		return ledger.OutcomeSkippedSelf, true
	}
	return "", false
}

func replyOutcome(kind pipeline.Kind) string {
	switch kind {
	case pipeline.KindHelp:
		return ledger.OutcomeHelp
	case pipeline.KindNoData:
		return ledger.OutcomeNoData
	case pipeline.KindFallback:
		return ledger.OutcomeFallback
	}
	return ledger.OutcomeReplied
}

func (r *Runner) handle(ctx context.Context, logger *zap.Logger, n mention.Notification) (string, error) {
	verdict := r.filter.Check(n)
	if !verdict.Eligible {
		outcome, record := skipOutcome(verdict.Reason)
		if !record {
			logger.Debug("ignoring notification", zap.String("reason", string(verdict.Reason)))
			return outcomeIgnored, nil
		}
		if !r.ledger.Claim(n.ID) {
			return outcomeIgnored, nil
		}
		logger.Info("skipping mention",
			zap.String("reason", string(verdict.Reason)),
			zap.String("visibility", string(n.Visibility)),
			zap.String("account", n.Author))
		metrics.RecordNotification(outcome)
		if r.cfg.DryRun {
			return outcome, nil
		}
		return outcome, r.commit(ctx, logger, n.ID, outcome)
	}

	if !r.ledger.Claim(n.ID) {
		logger.Debug("notification already claimed")
		return outcomeIgnored, nil
	}

	question := mention.Question(n.Text)
	reply := mention.Reply{
		InReplyTo:  n.StatusID,
		Author:     n.Author,
		Visibility: mention.VisibilityUnlisted,
	}
	limit := r.cfg.PostLimit - r.cfg.PostMargin - len([]rune(reply.Status()))
	result, err := r.responder.Respond(ctx, r.settings, pipeline.Request{
		Question:       question,
		Limit:          limit,
		DetectCategory: true,
		DetectHelp:     true,
	})
	if err != nil {
		r.ledger.Release(n.ID)
		return outcomeReleased, err
	}
	reply.Text = result.Text
	outcome := replyOutcome(result.Kind)
	logger.Info("answering mention",
		zap.String("account", n.Author),
		zap.String("visibility", string(n.Visibility)),
		zap.String("category", result.Category),
		zap.String("kind", string(result.Kind)),
		zap.Int("papers", result.Papers),
		zap.Int("reply_len", len([]rune(reply.Text))))

	if r.cfg.DryRun {
		logger.Info("dry run, not posting", zap.String("reply", reply.Status()))
		r.interactions.Record(n.Author, result.Category, len([]rune(question)), len([]rune(reply.Text)))
		metrics.RecordNotification(outcomeDryRun)
		return outcomeDryRun, nil
	}

	postID, err := r.post(ctx, logger, reply)
	if err != nil {
		r.ledger.Release(n.ID)
		metrics.RecordPost("error")
		logger.Error("post failed, will retry next cycle", zap.Error(err))
		if ctx.Err() != nil {
			return outcomeReleased, err
		}
		return outcomeReleased, nil
	}
	metrics.RecordPost("ok")
	logger.Info("replied", zap.String("status_id", postID))

	r.interactions.Record(n.Author, result.Category, len([]rune(question)), len([]rune(reply.Text)))
	metrics.RecordNotification(outcome)
	return outcome, r.commit(ctx, logger, n.ID, outcome)
}

func (r *Runner) post(ctx context.Context, logger *zap.Logger, reply mention.Reply) (string, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}
	return retry.Do(ctx, r.cfg.PostRetry, retryablePost, logger, func(ctx context.Context) (string, error) {
		return r.platform.PostReply(ctx, reply)
	})
}

func retryablePost(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// commit records the outcome even if shutdown has begun, since the reply is
// already public.
func (r *Runner) commit(ctx context.Context, logger *zap.Logger, id, outcome string) error {
	if err := r.ledger.Commit(context.WithoutCancel(ctx), id, ledger.NewMarker(outcome)); err != nil {
		logger.Error("ledger commit failed", zap.Error(err))
		return err
	}
	return nil
}

// laterID orders Mastodon ids, which are decimal strings of varying length.
func laterID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
