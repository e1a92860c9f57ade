// Package pipeline answers one question from the local snapshot archive.
// The CLI session and the Mastodon bot both go through Responder so they
// produce identical answers for identical settings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/answer"
	"github.com/csheth/ragtoxiv/internal/llm"
	"github.com/csheth/ragtoxiv/internal/mention"
	"github.com/csheth/ragtoxiv/internal/metrics"
	"github.com/csheth/ragtoxiv/internal/retrieval"
	"github.com/csheth/ragtoxiv/internal/retry"
	"github.com/csheth/ragtoxiv/internal/snapshot"
)

// Settings is the per-run session configuration.
type Settings struct {
	Category  string
	Mode      retrieval.Mode
	MaxFiles  int
	SkipEmpty bool
	Template  *llm.Template
	Model     string
}

// Validate reports settings that cannot produce a prompt.
func (s Settings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Category) == "" {
		problems = append(problems, "category is empty")
	}
	if _, err := retrieval.ParseMode(string(s.Mode)); err != nil {
		problems = append(problems, err.Error())
	}
	if s.MaxFiles < 1 {
		problems = append(problems, "max files must be at least 1")
	}
	if s.Template == nil {
		problems = append(problems, "prompt template is not set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Kind classifies a Result.
type Kind string

const (
	KindHelp     Kind = "help"
	KindNoData   Kind = "no_data"
	KindAnswer   Kind = "answer"
	KindFallback Kind = "fallback"
)

// Request is one question.
type Request struct {
	Question string
	// Limit bounds the answer length in runes; zero disables truncation.
	Limit int
	// DetectCategory lets a category named in the question override
	// Settings.Category.
	DetectCategory bool
	// DetectHelp answers help requests and empty questions with the help text.
	DetectHelp bool
}

// Result is the text to deliver plus what produced it.
type Result struct {
	Kind     Kind
	Category string
	Text     string
	Papers   int
	Skipped  int
	// Omitted counts papers left out of the prompt context.
	Omitted int
	// Err is the model failure behind a KindFallback result.
	Err error
}

// Responder wires the snapshot store, context builder, prompt template and
// model together.
type Responder struct {
	store   *snapshot.Store
	builder *retrieval.Builder
	client  llm.Client
	policy  retry.Policy
	logger  *zap.Logger
}

// Option customises a Responder.
type Option func(*Responder)

// WithRetryPolicy overrides the model retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Responder) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBuilder replaces the default context builder.
func WithBuilder(b *retrieval.Builder) Option {
	return func(r *Responder) {
		if b != nil {
			r.builder = b
		}
	}
}

// NewResponder returns a responder reading from store and asking client.
func NewResponder(store *snapshot.Store, client llm.Client, opts ...Option) *Responder {
	r := &Responder{
		store:   store,
		builder: retrieval.NewBuilder(retrieval.DefaultMaxChars),
		client:  client,
		policy:  retry.DefaultPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Categories lists categories with snapshot data. Storage errors yield an
// empty list.
func (r *Responder) Categories() []string {
	cats, err := r.store.Categories()
	if err != nil {
		r.logger.Warn("list categories", zap.Error(err))
		return nil
	}
	return cats
}

// PaperCount reports how many papers settings would load for category.
func (r *Responder) PaperCount(category string, settings Settings) int {
	selection, err := r.store.LoadCategory(category, settings.MaxFiles, settings.SkipEmpty)
	if err != nil {
		r.logger.Warn("load snapshots", zap.String("category", category), zap.Error(err))
	}
	return selection.PaperCount()
}

// Respond produces the reply text for req. Only context cancellation is
// returned as an error; model failures become a KindFallback result.
func (r *Responder) Respond(ctx context.Context, settings Settings, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	question := strings.TrimSpace(req.Question)
	if req.DetectHelp && (question == "" || mention.IsHelpRequest(question)) {
		return Result{
			Kind:     KindHelp,
			Category: settings.Category,
			Text:     mention.HelpMessage(r.Categories()),
		}, nil
	}

	category := settings.Category
	if req.DetectCategory {
		if detected, ok := mention.DetectCategory(question); ok {
			category = detected
		}
	}

	selection, err := r.store.LoadCategory(category, settings.MaxFiles, settings.SkipEmpty)
	if err != nil {
		r.logger.Error("load snapshots", zap.String("category", category), zap.Error(err))
	}
	if selection.Skipped > 0 {
		metrics.SkippedSnapshotsTotal.Add(float64(selection.Skipped))
		r.logger.Warn("skipped unreadable snapshots",
			zap.String("category", category),
			zap.Strings("files", selection.SkippedFiles))
	}
	if selection.PaperCount() == 0 {
		return Result{
			Kind:     KindNoData,
			Category: category,
			Text:     mention.NoDataMessage(category, r.Categories()),
			Skipped:  selection.Skipped,
		}, nil
	}

	pkg := r.builder.Build(selection.Snapshots, settings.Mode)
	metrics.ContextPapers.Observe(float64(pkg.Papers))
	prompt := settings.Template.Assemble(category, pkg.Text, question)
	result := Result{
		Category: category,
		Papers:   pkg.Papers,
		Skipped:  selection.Skipped,
		Omitted:  pkg.Omitted,
	}
	r.logger.Debug("assembled prompt",
		zap.String("category", category),
		zap.String("mode", string(settings.Mode)),
		zap.Int("papers", pkg.Papers),
		zap.Int("omitted", pkg.Omitted),
		zap.Int("prompt_chars", len(prompt)))

	start := time.Now()
	raw, err := retry.Do(ctx, r.policy, llm.IsTransient, r.logger, func(ctx context.Context) (string, error) {
		return r.client.Complete(ctx, prompt, settings.Model)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Result{}, ctxErr
		}
		metrics.RecordLLM("error", time.Since(start))
		r.logger.Error("model request failed",
			zap.String("provider", r.client.Name()),
			zap.Bool("transient", llm.IsTransient(err)),
			zap.Error(err))
		result.Kind = KindFallback
		result.Text = answer.Fallback
		result.Err = err
		return result, nil
	}
	metrics.RecordLLM("ok", time.Since(start))

	result.Text = answer.Process(raw, req.Limit)
	result.Kind = KindAnswer
	if answer.Clean(raw) == "" {
		result.Kind = KindFallback
	}
	return result, nil
}
