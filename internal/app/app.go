// Package app provides the top-level application lifecycle management for the
// trade watcher. It resolves the tracked account, wires the feed, pipeline,
// dispatcher, and liveness server together, and supervises them until
// shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rollmaster/rollwatch/internal/config"
	"github.com/rollmaster/rollwatch/internal/domain"
	"github.com/rollmaster/rollwatch/internal/notify"
	"github.com/rollmaster/rollwatch/internal/pipeline"
	"github.com/rollmaster/rollwatch/internal/platform/csgoroll"
	"github.com/rollmaster/rollwatch/internal/server"
)

// shutdownTimeout bounds the graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It resolves the tracked account once at
// startup, wires all components, starts the feed and the liveness server, and
// blocks until the context is cancelled. A permanently-down feed does not
// stop the process; only the feed halts while the liveness surface stays up.
func (a *App) Run(ctx context.Context) error {
	client := csgoroll.NewClient(a.cfg.Roll.APIURL, a.cfg.Roll.Cookie, a.cfg.Roll.UserAgent, a.logger)

	account, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("app: resolve tracked account: %w", err)
	}
	a.logger.InfoContext(ctx, "tracked account resolved",
		slog.String("account_id", account.ID),
		slog.Bool("balance_known", account.Balance != nil),
	)

	sender := notify.NewDiscordSender(a.cfg.Notify.Timezone, a.logger)
	dispatcher := notify.NewDispatcher(
		sender,
		a.cfg.Dispatch.MessageDelay.Duration,
		a.cfg.Dispatch.ThrottleFallback.Duration,
		a.logger,
	)

	processor := pipeline.NewTradeProcessor(
		account.ID,
		a.cfg.Notify.DepositWebhookURL,
		a.cfg.Notify.WithdrawWebhookURL,
		client,
		dispatcher,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	// The handler runs on the group context so in-flight balance fetches and
	// enqueues stop when any sibling task fails.
	feed := csgoroll.NewFeed(
		csgoroll.FeedOptions{
			WsURL:                a.cfg.Roll.WsURL,
			Cookie:               a.cfg.Roll.Cookie,
			UserAgent:            a.cfg.Roll.UserAgent,
			HeartbeatInterval:    a.cfg.Feed.HeartbeatInterval.Duration,
			ReconnectDelay:       a.cfg.Feed.ReconnectDelay.Duration,
			MaxReconnectAttempts: a.cfg.Feed.MaxReconnectAttempts,
		},
		func(ev domain.TradeEvent) { processor.HandleTrade(gctx, ev) },
		a.logger,
	)

	g.Go(func() error {
		err := feed.Run(gctx)
		if errors.Is(err, domain.ErrReconnectExhausted) {
			// The feed is gone for good, but the host keeps serving
			// liveness checks.
			return nil
		}
		return err
	})

	if a.cfg.Server.Enabled {
		srv := server.NewServer(a.cfg.Server.Port, a.logger)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return gctx.Err()
		})
	}

	return g.Wait()
}
