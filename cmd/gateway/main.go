package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/insurego/claims-gateway/internal/api"
	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/config"
	"github.com/insurego/claims-gateway/internal/logging"
	"github.com/insurego/claims-gateway/internal/policy"
	redisclient "github.com/insurego/claims-gateway/internal/redis"
	"github.com/insurego/claims-gateway/internal/upstream"
	"github.com/insurego/claims-gateway/internal/visit"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("gateway", "dev")
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("gateway", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("gateway starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	client := upstream.NewClient(cfg.PolicyBaseURL, cfg.ClaimBaseURL, cfg.VisitBaseURL, cfg.UpstreamTimeout)
	sessions := redisclient.NewSessionStore(rdb, cfg.VerificationTTL)

	claims := claim.NewCoordinator(client, sessions, sessions, cfg.ExpiringWindow)
	policies := policy.NewService(client, sessions, cfg.ExpiringWindow)
	visits := visit.NewService(client)

	router := api.NewRouter(api.RouterConfig{
		Claims:   claims,
		Policies: policies,
		Visits:   visits,
		Redis:    rdb,
		Upstreams: map[string]string{
			"policy-service": cfg.PolicyBaseURL,
			"claim-service":  cfg.ClaimBaseURL,
			"visit-service":  cfg.VisitBaseURL,
		},
		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
		Version:   version,
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
