package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refgrow/internal/api"
	"refgrow/internal/bot"
	"refgrow/internal/config"
	"refgrow/internal/db"
	"refgrow/internal/metrics"
	"refgrow/internal/referral"
	"refgrow/internal/session"
	"refgrow/internal/store/postgres"
	"refgrow/internal/store/sqlite"
	"refgrow/internal/telegram"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	sessions, closeSessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		logger.Error("open session store failed", "err", err)
		os.Exit(1)
	}
	defer closeSessions()

	m := metrics.New()
	svc := referral.NewService(store, cfg.BotUsername, logger)
	onboarding := referral.NewOnboarding(svc, sessions)

	tg, err := telegram.NewAPI(cfg.BotToken, cfg.Debug, cfg.PollTimeout)
	if err != nil {
		logger.Error("telegram login failed", "err", err)
		os.Exit(1)
	}
	if tg.Self.UserName != cfg.BotUsername {
		logger.Warn("BOT_USERNAME differs from the token's bot; links use BOT_USERNAME",
			"configured", cfg.BotUsername,
			"actual", tg.Self.UserName,
		)
	}

	gate := telegram.NewMembershipGate(tg, cfg.ChannelID, logger)
	handler := bot.NewHandler(svc, onboarding, gate, bot.Options{
		MembershipTimeout: cfg.MembershipTimeout,
		Logger:            logger,
		Metrics:           m,
	})
	poller := telegram.NewBot(tg, handler, telegram.Options{
		Channel:     cfg.ChannelID,
		Workers:     cfg.Workers,
		PollTimeout: cfg.PollTimeout,
		Logger:      logger,
	})

	if len(cfg.Admin.PasswordHash) == 0 {
		logger.Warn("ADMIN_PASSWORD not set; /v1 admin routes are disabled")
	}
	server := api.New(cfg.Admin, logger, svc, m.Handler())
	httpServer := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("admin api listening", "addr", cfg.Admin.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func openStore(ctx context.Context, cfg config.BotConfig, logger *slog.Logger) (referral.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres store")
		return store, pool.Close, nil
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using sqlite store", "path", cfg.SQLitePath)
	return store, func() { _ = store.Close() }, nil
}

func openSessions(ctx context.Context, cfg config.BotConfig, logger *slog.Logger) (referral.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory onboarding sessions")
		return session.NewMemory(), func() {}, nil
	}
	rdb, err := session.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis onboarding sessions", "ttl", cfg.SessionTTL.String())
	return session.NewRedis(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }, nil
}
