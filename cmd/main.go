package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/urfave/cli/v2"

	"mediaguard/backend/internal/api/handler"
	"mediaguard/backend/internal/bootstrap"
	"mediaguard/backend/internal/config"
	"mediaguard/backend/internal/eventhub"
	"mediaguard/backend/internal/ledger"
	"mediaguard/backend/internal/logging"
	"mediaguard/backend/internal/storage"
	"mediaguard/backend/internal/telegram"
)

func main() {
	app := &cli.App{
		Name:  "mediaguard",
		Usage: "moderation ledger API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config.yaml",
				Value:   "config.yaml",
				EnvVars: []string{"MEDIAGUARD_CONFIG"},
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("mediaguard exited", "err", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve the API")
	}
	logger, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	logger.Info("starting mediaguard", "addr", cfg.HTTPAddr, "db", cfg.DatabaseDriver)

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := eventhub.NewHub(logger)
	go hub.Run(ctx)

	var publisher ledger.Publisher = hub
	rdb, err := bootstrap.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		rp := storage.NewRedisPublisher(rdb, config.EventsChannel)
		publisher = rp
		go hub.ListenRedis(ctx, rp.Subscribe(ctx))
		logger.Info("events fan out through redis", "channel", config.EventsChannel)
	}

	svc, err := bootstrap.OpenLedger(ctx, cfg, store, publisher, logger)
	if err != nil {
		return err
	}

	if cfg.TelegramBotToken != "" {
		bot, err := startTelegram(ctx, cfg, svc, hub, logger)
		if err != nil {
			return err
		}
		defer bot.StopReceivingUpdates()
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHandler(svc, hub, auth, logger)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startTelegram registers the owner notifier on the hub and starts the
// owner command bot.
func startTelegram(ctx context.Context, cfg config.Config, svc *ledger.Service, hub *eventhub.Hub, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if cfg.TelegramOwnerChatID == 0 {
		return nil, errors.New("TELEGRAM_OWNER_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	// bounds a stalled Send; must outlast the long poll below
	client := &http.Client{Timeout: 45 * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	logger.Info("telegram bot authorized", "account", bot.Self.UserName)

	hub.Register(telegram.NewNotifier(bot, cfg.TelegramOwnerChatID, logger))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	ownerBot := telegram.NewOwnerBot(bot, svc, cfg.TelegramOwnerChatID, logger)
	go ownerBot.Run(ctx, bot.GetUpdatesChan(u))
	return bot, nil
}
