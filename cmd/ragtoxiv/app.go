package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/bot"
	"github.com/csheth/ragtoxiv/internal/config"
	"github.com/csheth/ragtoxiv/internal/ledger"
	"github.com/csheth/ragtoxiv/internal/llm"
	"github.com/csheth/ragtoxiv/internal/logging"
	"github.com/csheth/ragtoxiv/internal/mastodon"
	"github.com/csheth/ragtoxiv/internal/pipeline"
	"github.com/csheth/ragtoxiv/internal/retrieval"
	"github.com/csheth/ragtoxiv/internal/snapshot"
)

// newLLMClient is swapped out in tests.
var newLLMClient = func(c *config.Config) (llm.Client, error) {
	client, err := llm.NewFromEnv(llm.Config{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		Endpoint: c.LLM.Endpoint,
		APIKey:   c.LLM.APIKey,
	})
	if err != nil {
		return nil, &config.Error{Field: "llm", Err: err}
	}
	return client, nil
}

func sessionSettings(c *config.Config) (pipeline.Settings, error) {
	mode, err := retrieval.ParseMode(c.Session.Mode)
	if err != nil {
		return pipeline.Settings{}, &config.Error{Field: "session.mode", Err: err}
	}
	tmpl, err := c.Template()
	if err != nil {
		return pipeline.Settings{}, err
	}
	settings := pipeline.Settings{
		Category:  c.Session.Category,
		Mode:      mode,
		MaxFiles:  c.Session.MaxFiles,
		SkipEmpty: c.SkipEmpty(),
		Template:  tmpl,
		Model:     c.LLM.Model,
	}
	return settings, settings.Validate()
}

// newResponder wires the snapshot store and the model client into the shared
// question pipeline.
func newResponder(c *config.Config, log *zap.Logger) (*pipeline.Responder, pipeline.Settings, error) {
	settings, err := sessionSettings(c)
	if err != nil {
		return nil, pipeline.Settings{}, err
	}
	client, err := newLLMClient(c)
	if err != nil {
		return nil, pipeline.Settings{}, err
	}
	responder := pipeline.NewResponder(snapshot.NewStore(c.DataDir), client,
		pipeline.WithRetryPolicy(c.LLM.Retry),
		pipeline.WithBuilder(retrieval.NewBuilder(c.Session.ContextMaxChars)),
		pipeline.WithLogger(log),
	)
	log.Info("responder ready",
		zap.String("provider", client.Name()),
		zap.String("model", settings.Model),
		zap.String("category", settings.Category))
	return responder, settings, nil
}

func openLedger(ctx context.Context, c *config.Config) (ledger.Ledger, error) {
	path := c.LedgerPath()
	switch c.Ledger.Driver {
	case config.LedgerSQLite:
		return ledger.OpenSQLite(ctx, path)
	default:
		return ledger.OpenFile(path)
	}
}

// newPlatform is swapped out in tests.
var newPlatform = func(ctx context.Context, c *config.Config, log *zap.Logger) (bot.Platform, error) {
	if err := c.RequireMastodon(); err != nil {
		return nil, err
	}
	client, err := mastodon.New(mastodon.Config{
		Server:      c.Mastodon.Server,
		AccessToken: c.Mastodon.AccessToken,
		PageLimit:   c.Mastodon.PageLimit,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	acct, err := client.Verify(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify mastodon credentials: %w", err)
	}
	log.Info("authenticated", zap.String("account", acct), zap.String("server", c.Mastodon.Server))
	return client, nil
}

// botApp owns everything a bot run opens so it can be closed in one place.
type botApp struct {
	runner       *bot.Runner
	ledger       ledger.Ledger
	interactions *logging.InteractionLog
}

func newBotApp(ctx context.Context, c *config.Config, log *zap.Logger, dryRun bool) (*botApp, error) {
	platform, err := newPlatform(ctx, c, log)
	if err != nil {
		return nil, err
	}
	responder, settings, err := newResponder(c, log)
	if err != nil {
		return nil, err
	}
	processed, err := openLedger(ctx, c)
	if err != nil {
		return nil, err
	}
	interactions, err := logging.OpenInteractionLog(filepath.Join(c.LogDir, logging.InteractionFile))
	if err != nil {
		_ = processed.Close()
		return nil, err
	}
	log.Info("ledger opened",
		zap.String("driver", c.Ledger.Driver),
		zap.String("path", c.LedgerPath()),
		zap.Int("processed", processed.Len()))

	runner := bot.New(platform, processed, responder, settings, bot.Config{
		BotAcct:      c.BotAcct(),
		DryRun:       dryRun,
		PollInterval: c.Bot.PollInterval,
		PostLimit:    c.Bot.PostLimit,
		PostMargin:   c.Bot.PostMargin,
		PostPacing:   c.Bot.PostPacing,
		PostRetry:    c.Bot.PostRetry,
	}, bot.WithLogger(log), bot.WithInteractionLog(interactions))
	return &botApp{runner: runner, ledger: processed, interactions: interactions}, nil
}

func (a *botApp) Close() error {
	logErr := a.interactions.Close()
	if err := a.ledger.Close(); err != nil {
		return err
	}
	return logErr
}
