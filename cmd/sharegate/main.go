package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robalyx/sharegate/internal/setup"
	"github.com/robalyx/sharegate/internal/setup/telemetry"
	"github.com/robalyx/sharegate/internal/telegram"
	"github.com/robalyx/sharegate/internal/webhook"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Log directories for each command.
const (
	ServeLogDir   = "logs/serve_logs"
	RefreshLogDir = "logs/refresh_logs"
	AdminLogDir   = "logs/admin_logs"
)

var ErrURLRequired = errors.New("--url is required")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "sharegate",
		Usage: "Referral-gated invite links for a Telegram community",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the webhook and refresh endpoints",
				Action: serve,
			},
			{
				Name:   "refresh",
				Usage:  "Republish the pinned summary once and exit",
				Action: refresh,
			},
			{
				Name:  "webhook",
				Usage: "Manage the Bot API webhook registration",
				Commands: []*cli.Command{
					{
						Name:  "set",
						Usage: "Point the bot at the webhook endpoint",
						Description: `Registers <url> plus the configured secret path with the Bot API.
Only the update types the service counts joins from are requested.

Examples:
  sharegate webhook set --url https://bot.example.com`,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "url",
								Aliases:  []string{"u"},
								Usage:    "Public base URL of this service",
								Required: true,
							},
						},
						Action: setWebhook,
					},
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// serve runs the HTTP server until SIGINT or SIGTERM.
func serve(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceServe, ServeLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup()

	cfg := app.Config

	dispatcher := webhook.NewDispatcher(
		app.Referral, app.Telegram, cfg.Telegram.ChatID, cfg.Telegram.MemberUpdates, app.Logger,
	)
	handler := webhook.NewServer(dispatcher, app.Referral.Broadcaster, &cfg.Server, app.Logger)

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	if !cfg.Telegram.MemberUpdates {
		app.Logger.Warn("Counting joins from service messages, which usually lack the invite link")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info("HTTP server started",
			zap.String("addr", addr),
			zap.String("webhookPath", webhook.WebhookPath(cfg.Server.Secret)),
			zap.Bool("memberUpdates", cfg.Telegram.MemberUpdates))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Bring the pinned summary up to date with whatever happened while down
	g.Go(func() error {
		app.Referral.Broadcaster.Refresh(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		app.Logger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond,
		)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("Server forced to shutdown", zap.Error(err))
			return err
		}

		app.Logger.Info("Server gracefully stopped")

		return nil
	})

	return g.Wait()
}

// refresh publishes the summary once.
func refresh(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceRefresh, RefreshLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup()

	if err := app.Referral.Broadcaster.Publish(ctx); err != nil {
		return err
	}

	app.Logger.Info("Summary published")

	return nil
}

// setWebhook registers the webhook URL with the Bot API.
func setWebhook(ctx context.Context, c *cli.Command) error {
	baseURL := c.String("url")
	if baseURL == "" {
		return ErrURLRequired
	}

	app, err := setup.InitializeApp(ctx, telemetry.ServiceAdmin, AdminLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup()

	cfg := app.Config
	webhookURL := strings.TrimRight(baseURL, "/") + webhook.WebhookPath(cfg.Server.Secret)
	allowed := telegram.AllowedUpdates(cfg.Telegram.MemberUpdates)

	if err := app.Telegram.SetWebhook(ctx, webhookURL, allowed); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	app.Logger.Info("Webhook registered", zap.Strings("allowedUpdates", allowed))
	log.Printf("Webhook registered for %v", allowed)

	return nil
}
