package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"keyword_responder/internal/admin"
	"keyword_responder/internal/config"
	"keyword_responder/internal/filecache"
	"keyword_responder/internal/metrics"
	"keyword_responder/internal/moderation"
	"keyword_responder/internal/notify"
	"keyword_responder/internal/replies"
	"keyword_responder/internal/responder"
	"keyword_responder/internal/session"
	"keyword_responder/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the LINE webhook and the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnv(v)
			if err != nil {
				return err
			}
			defer func() { _ = env.logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, env)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP listen port.")
	cmd.Flags().Bool("watch", true, "Invalidate caches on file change events.")
	cmd.Flags().String("redis-addr", "", "Redis address for admin sessions (memory when empty).")
	cmd.Flags().String("nats-url", "", "NATS URL for moderation events (disabled when empty).")
	bindFlag(v, config.KeyPort, cmd.Flags().Lookup("port"))
	bindFlag(v, config.KeyWatchFiles, cmd.Flags().Lookup("watch"))
	bindFlag(v, config.KeyRedisAddr, cmd.Flags().Lookup("redis-addr"))
	bindFlag(v, config.KeyNATSURL, cmd.Flags().Lookup("nats-url"))
	return cmd
}

func serve(ctx context.Context, env *env) error {
	cfg, logger := env.cfg, env.logger

	if cfg.UsesDefaultPassword() {
		logger.Warn("ADMIN_PASSWORD is not set; using the built-in default")
	}

	replyStore := replies.OpenStore(cfg.WordsFile,
		replies.WithNormalizer(env.norm),
		replies.WithZone(cfg.CommandZone()),
		replies.WithLogger(logger),
		replies.WithLoadHook(metrics.ReloadHook("replies")),
	)
	var modStore *moderation.Store
	caches := []admin.Cache{replyStore}
	if cfg.ModerationFile != "" {
		modStore = moderation.OpenStore(cfg.ModerationFile,
			moderation.WithNormalizer(env.norm),
			moderation.WithLogger(logger),
			moderation.WithLoadHook(metrics.ReloadHook("moderation")),
		)
		caches = append(caches, modStore)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NATSURL != "" {
		ncfg := notify.DefaultConfig()
		ncfg.URL = cfg.NATSURL
		ncfg.Subject = cfg.NATSSubject
		nn, err := notify.NewNATS(ncfg, logger)
		if err != nil {
			return err
		}
		defer nn.Close()
		notifier = nn
	}

	var sessions session.Store = session.NewMemoryStore(cfg.SessionTTL)
	if cfg.RedisAddr != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.SessionTTL)
		if err != nil {
			return err
		}
		defer rs.Close()
		sessions = rs
		logger.Info("admin sessions stored in redis", zap.String("addr", cfg.RedisAddr))
	}

	var gate *moderation.Gate
	if modStore != nil {
		gate = moderation.NewGate(modStore)
	}
	resp := responder.New(gate, replyStore,
		responder.WithNotifier(notifier),
		responder.WithLogger(logger),
	)

	var watcher *filecache.Watcher
	if cfg.WatchFiles {
		w, err := filecache.NewWatcher(logger)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Add(cfg.WordsFile, replyStore); err != nil {
			return err
		}
		if modStore != nil {
			if err := w.Add(cfg.ModerationFile, modStore); err != nil {
				return err
			}
		}
		watcher = w
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	if cfg.LINEEnabled() {
		sender, err := webhook.NewLINESender(cfg.ChannelAccessToken)
		if err != nil {
			return err
		}
		webhook.NewHandler(cfg.ChannelSecret, resp, sender,
			webhook.WithDefaultReply(cfg.DefaultReply),
			webhook.WithLogger(logger),
		).Register(e)
	} else {
		logger.Warn("LINE credentials not set; /callback is disabled")
	}

	admin.New(admin.Config{
		Password:   cfg.AdminPassword,
		Sessions:   sessions,
		Repository: replies.NewRepository(cfg.WordsFile, env.norm),
		Caches:     caches,
		Resolver:   resp,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}).Register(e)

	logger.Info("autoresponder started",
		zap.String("addr", cfg.Addr()),
		zap.String("words_file", cfg.WordsFile),
		zap.String("moderation_file", cfg.ModerationFile),
		zap.Stringer("normalize_policy", cfg.NormalizePolicy),
		zap.Bool("watch", cfg.WatchFiles),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if watcher != nil {
		group.Go(func() error {
			watcher.Run(groupCtx)
			return nil
		})
	}
	group.Go(func() error {
		err := e.Start(cfg.Addr())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
