// Command server runs the portal HTTP API.
//
// @title                       EnergoSales Portal API
// @version                     1.0
// @description                 Accounts, sessions and role-gated administration for the EnergoSales operator portal.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/energosales/portal/internal/api"
	"github.com/energosales/portal/internal/core/domain"
	"github.com/energosales/portal/internal/core/ports"
	"github.com/energosales/portal/internal/core/service"
	"github.com/energosales/portal/internal/infrastructure/db/redis"
	"github.com/energosales/portal/internal/infrastructure/db/sqlstore"
	"github.com/energosales/portal/internal/infrastructure/queue"
	"github.com/energosales/portal/internal/infrastructure/webhook"
	"github.com/energosales/portal/internal/pkg/config"
	"github.com/energosales/portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{})
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "portal",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server exited properly")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	storeCfg := cfg.StoreConfig()
	db, err := sqlstore.Open(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(db, storeCfg.Driver); err != nil {
		return err
	}
	repo := sqlstore.NewUserRepository(db)
	log.Info().Str("driver", string(storeCfg.Driver)).Msg("credential store ready")

	if email := strings.ToLower(strings.TrimSpace(cfg.Auth.BootstrapAdminEmail)); email != "" {
		switch err := repo.SetRole(ctx, email, domain.RoleAdmin); {
		case errors.Is(err, domain.ErrUserNotFound):
			log.Warn().Str("email", email).Msg("bootstrap admin is not registered yet")
		case err != nil:
			return err
		default:
			log.Info().Str("email", email).Msg("bootstrap admin promoted")
		}
	}

	tokens := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authOpts := []service.AuthOption{
		service.WithPasswordMinLength(cfg.Auth.PasswordMinLength),
		service.WithLogger(logger.Component("auth")),
	}

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		authOpts = append(authOpts, service.WithRevocationList(redis.NewRevocationList(rdb, cfg.Redis.KeyPrefix, tokens.TTL())))
		log.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Str("prefix", cfg.Redis.KeyPrefix).Msg("token revocation enabled")
	} else {
		log.Warn().Msg("REDIS_ADDR is empty: deleted users keep valid tokens until expiry")
	}

	authService := service.NewAuthService(repo, tokens, authOpts...)

	var leadService ports.LeadService
	if cfg.Leads.WebhookURL != "" {
		sink := webhook.NewClient(webhook.Config{
			URL:     cfg.Leads.WebhookURL,
			Timeout: cfg.Leads.WebhookTimeout,
		}, logger.Component("webhook"))
		dispatcher := queue.NewDispatcher(cfg.Leads.Workers, sink, logger.Component("leads"),
			queue.WithDeliveryTimeout(cfg.Leads.DeliveryTimeout))
		dispatcher.Start()
		// Runs after the HTTP shutdown below, so leads queued by finished
		// handlers are still delivered.
		defer dispatcher.Close()
		leadService = service.NewLeadService(dispatcher, logger.Component("leads"))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := api.NewRouter(api.Deps{
		AuthService:      authService,
		LeadService:      leadService,
		Store:            repo,
		Redis:            rdb,
		Registry:         reg,
		Logger:           log,
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AuthRateLimit:    cfg.HTTP.AuthRateLimit,
		AuthRateBurst:    cfg.HTTP.AuthRateBurst,
	})
	if err != nil {
		return err
	}

	e.Server.ReadTimeout = 5 * time.Second
	// Lead submissions answer only after the spreadsheet does.
	e.Server.WriteTimeout = max(10*time.Second, cfg.Leads.DeliveryTimeout+5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return e.Shutdown(shutdownCtx)
}
