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

	"golang.org/x/sync/errgroup"

	"github.com/pnar-online/pnar-api/internal/app"
	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/observability"
	"github.com/pnar-online/pnar-api/internal/platform/cache"
	"github.com/pnar-online/pnar-api/internal/platform/db"
	"github.com/pnar-online/pnar-api/internal/roles/catalog"
	"github.com/pnar-online/pnar-api/internal/shared"
	"github.com/pnar-online/pnar-api/internal/users"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	// The throttle is optional; sign-in keeps working without Redis.
	var throttle *auth.LoginThrottle
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, login throttle disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		throttle = auth.NewLoginThrottle(redisClient, cfg.LoginMaxAttempts, cfg.LoginLockoutWindow, logger)
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.JWTSecret),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	authRepo := auth.NewRepository(dbpool)
	resolver := auth.NewResolver(authRepo, logger, metrics, cfg.RoleLookupTimeout)
	authn := auth.NewAuthenticator(codec, resolver, logger, metrics)

	authService := auth.NewService(authRepo, codec, throttle, logger)
	usersService := users.NewService(users.NewRepository(dbpool), logger).WithAudit(shared.NewAuditLogger(dbpool))

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    auth.NewHandler(logger, authService, authn),
		CatalogHandler: catalog.NewHandler(authn),
		UsersHandler:   users.NewHandler(logger, usersService, authn),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
