package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/csheth/ragtoxiv/internal/config"
	"github.com/csheth/ragtoxiv/internal/logging"
	"github.com/csheth/ragtoxiv/internal/metrics"
	"github.com/csheth/ragtoxiv/internal/scheduler"
	"github.com/csheth/ragtoxiv/internal/session"
	"github.com/csheth/ragtoxiv/internal/snapshot"
	"github.com/csheth/ragtoxiv/internal/tui"
)

const metricsShutdownTimeout = 5 * time.Second

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Ask questions interactively",
	Long: `Starts an interactive session. Type a question, or a command such as
/cat cs.CL, /mode full_abstract, /files 3, /list or /quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		useTUI, _ := cmd.Flags().GetBool("tui")
		noAltScreen, _ := cmd.Flags().GetBool("no-alt-screen")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		log := logger
		if useTUI {
			// Log lines on stderr would tear the full-screen view.
			if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
				return fmt.Errorf("create log dir: %w", err)
			}
			fileLogger, err := logging.New(logging.Options{
				Format:      cfg.Log.Format,
				Verbose:     cfg.Log.Verbose,
				OutputPaths: []string{filepath.Join(cfg.LogDir, "ragtoxiv.log")},
			})
			if err != nil {
				return err
			}
			defer func() { _ = fileLogger.Sync() }()
			log = fileLogger
		}

		responder, settings, err := newResponder(cfg, log)
		if err != nil {
			return err
		}
		sess := session.New(responder, settings)
		if useTUI {
			return tui.Run(tui.Config{Session: sess, Context: ctx, Logger: log}, !noAltScreen)
		}
		return session.Run(ctx, sess, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Answer pending Mastodon mentions once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		app, err := newBotApp(ctx, cfg, logger, dryRun)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Warn("close bot resources", zap.Error(err))
			}
		}()

		stats, err := app.runner.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, replied %d, skipped %d, failed %d, released %d\n",
			stats.Fetched, stats.Replied, stats.Skipped, stats.Failed, stats.Released)
		return nil
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Poll Mastodon for mentions until interrupted",
	Long: `Polls for new mentions every bot.poll_interval and replies to them. When
retention.schedule is set, old snapshots are pruned on that cron schedule; when
metrics.addr is set, Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		app, err := newBotApp(ctx, cfg, logger, dryRun)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Warn("close bot resources", zap.Error(err))
			}
		}()

		var sched *scheduler.Scheduler
		if cfg.Retention.Schedule != "" {
			sched = scheduler.New(snapshot.NewStore(cfg.DataDir), scheduler.Retention{
				Keep:       cfg.Retention.Keep,
				MaxAgeDays: cfg.Retention.MaxAgeDays,
				SkipEmpty:  cfg.Retention.SkipEmpty,
			}, logger)
			if err := sched.Schedule(cfg.Retention.Schedule); err != nil {
				return &config.Error{Field: "retention.schedule", Err: err}
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return app.runner.RunDaemon(gctx)
		})
		if sched != nil {
			g.Go(func() error {
				return sched.Run(gctx)
			})
		}

		if cfg.Metrics.Addr != "" {
			srv := metrics.NewServer(cfg.Metrics.Addr)
			g.Go(func() error {
				logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
				if err := srv.ListenAndServe(); err != nil && !metrics.IsServerClosed(err) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("daemon stopped")
		return nil
	},
}
