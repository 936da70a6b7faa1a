package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/insurego/claims-gateway/internal/auth"
	"github.com/insurego/claims-gateway/internal/config"
	"github.com/insurego/claims-gateway/internal/logging"
	"github.com/insurego/claims-gateway/internal/policy"
	redisclient "github.com/insurego/claims-gateway/internal/redis"
	"github.com/insurego/claims-gateway/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("expiry-monitor", "dev")
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("expiry-monitor", cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry monitor starting up")

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
	policies := policy.NewService(client, sessions, cfg.ExpiringWindow)

	// Upstream calls from the worker carry the service credential, not a
	// user's bearer token.
	workCtx := auth.WithToken(rootCtx, cfg.ServiceToken)

	// Run once at startup
	runOnce(workCtx, policies)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry monitor")
			return
		case <-ticker.C:
			runOnce(workCtx, policies)
		}
	}
}

func runOnce(ctx context.Context, policies *policy.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	if err := policies.Sweep(runCtx); err != nil {
		log.Error().Err(err).Msg("sweep error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("sweep complete")
}
