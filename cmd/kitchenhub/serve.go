package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v3"

	"github.com/cookiedrop/kitchenhub/internal/api"
	"github.com/cookiedrop/kitchenhub/internal/auth"
	"github.com/cookiedrop/kitchenhub/internal/config"
	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/internal/hub"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/internal/metrics"
	"github.com/cookiedrop/kitchenhub/internal/protocol"
	"github.com/cookiedrop/kitchenhub/internal/relay"
	"github.com/cookiedrop/kitchenhub/pkg/transport/websocket"
)

const (
	eventBufferSize = 1024
	shutdownTimeout = 10 * time.Second
)

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg, err := config.Load(config.LoadOptions{Path: configPath})
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging)

	secret := cfg.Auth.Secret()
	if secret == "" {
		return fmt.Errorf("no signing secret: set %s", cfg.Auth.SecretEnv)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	bus := eventbus.NewInMemoryBus(eventBufferSize)
	bus.Start(ctx)
	defer bus.Stop()

	recorder := metrics.New()

	h := hub.New(hub.Options{
		Logger:          logger,
		Clock:           clock,
		Events:          bus,
		Recorder:        recorder,
		PingInterval:    cfg.Hub.PingInterval,
		IdleThreshold:   cfg.Hub.IdleThreshold,
		PongTimeout:     cfg.Hub.PongTimeout,
		CleanupInterval: cfg.Hub.CleanupInterval,
		StaleTimeout:    cfg.Hub.StaleTimeout,
	})
	protocol.NewHubRouter(h, clock, logger).Attach(bus)
	h.Start(ctx)
	defer h.Stop()

	if cfg.Redis.Enabled {
		rl := relay.New(cfg.Redis, h, logger, clock)
		defer rl.Close()

		go func() {
			if err := rl.Run(ctx); err != nil {
				logger.Error("relay stopped", "error", err)
			}
		}()
	}

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
				logger.SetLevel(next.Logging.Level)
				logger.Info("log level reloaded", "level", logger.Level().String())
			})
			if err != nil {
				logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	wsOpts := []websocket.ServerOption{
		websocket.WithConnector(h),
		websocket.WithAuthenticator(auth.NewJWTAuthenticator(secret, cfg.Auth.Issuer, nil)),
		websocket.WithLogger(logger),
		websocket.WithMaxMessageSize(cfg.Server.MaxMessageSize),
		websocket.WithSendBufferSize(cfg.Server.SendBufferSize),
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		wsOpts = append(wsOpts, websocket.WithCheckOrigin(websocket.AllowOrigins(cfg.Server.AllowedOrigins...)))
	}
	wsServer := websocket.NewServer(wsOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get(cfg.Server.WebSocketPath, wsServer.ServeHTTP)
	r.Handle("/metrics", recorder.Handler())
	r.Mount("/", api.New(h, api.Options{
		APIKey: cfg.Server.APIKey(),
		Logger: logger,
		Clock:  clock,
	}))

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"websocket_path", cfg.Server.WebSocketPath,
			"redis_relay", cfg.Redis.Enabled,
			"version", version,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	return nil
}
