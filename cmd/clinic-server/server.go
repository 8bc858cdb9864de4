package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/account"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
)

const version = "0.1.0"

// app holds the domain services shared by the HTTP server and the CLI.
type app struct {
	accounts    *account.Service
	identity    *identity.Service
	scheduling  *scheduling.Service
	records     *records.Service
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
}

func newApp(pool *pgxpool.Pool, tokens *auth.TokenIssuer, revocations auth.RevocationStore) *app {
	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewProfessionalRepo(pool))
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepo(pool), identitySvc)
	return &app{
		accounts:    account.NewService(account.NewUserRepo(pool), tokens, revocations),
		identity:    identitySvc,
		scheduling:  schedulingSvc,
		records:     records.NewService(records.NewRecordRepo(pool), schedulingSvc),
		tokens:      tokens,
		revocations: revocations,
	}
}

// newEcho wires middleware and routes. dbHealth may be nil.
func newEcho(cfg *config.Config, logger zerolog.Logger, a *app, dbHealth echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Audit(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if dbHealth != nil {
		e.GET("/health/db", dbHealth)
	}

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	jwtCfg := auth.JWTConfig{
		Tokens:      a.tokens,
		Principals:  a.accounts,
		Revocations: a.revocations,
	}
	authn := auth.JWTMiddleware(jwtCfg)

	account.NewHandler(a.accounts).RegisterRoutes(apiV1, authn, auth.OptionalAuth(jwtCfg))
	auth.NewRevocationHandler(a.revocations, cfg.TokenTTL).RegisterRoutes(apiV1, authn)

	identity.NewHandler(a.identity).RegisterRoutes(apiV1, authn)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(apiV1, authn)
	records.NewHandler(a.records).RegisterRoutes(apiV1, authn)

	return e
}

func runServer(autoMigrate bool) error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := connect(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	migrator := db.NewMigrator(pool, migrationSource(""))
	if autoMigrate {
		n, err := migrator.Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
		logger.Info().Int("applied", n).Msg("migrations up to date")
	}

	// Token revocation
	var revocations auth.RevocationStore
	if cfg.RedisURL != "" {
		store, client, err := auth.OpenRedisRevocationStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		revocations = store
		logger.Info().Msg("using redis token revocation store")
	} else {
		store := auth.NewMemoryRevocationStore(time.Minute)
		defer store.Close()
		revocations = store
	}

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	e := newEcho(cfg, logger, newApp(pool, tokens, revocations), db.HealthHandler(pool, migrator))

	// Serve until SIGINT/SIGTERM, then drain.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
