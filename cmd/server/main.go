package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/portalcms/account-gateway/internal/api"
	"github.com/portalcms/account-gateway/internal/infrastructure/config"
	mongodb "github.com/portalcms/account-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/portalcms/account-gateway/internal/infrastructure/db/redis"
	"github.com/portalcms/account-gateway/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Env: cfg.Env})

	client, portal, realm, err := mongodb.Connect(ctx, mongodb.Config{
		URI:           cfg.Mongo.URI,
		Database:      cfg.Mongo.Database,
		RealmDatabase: cfg.Mongo.RealmDatabase,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("redis close failed")
		}
	}()

	e := api.NewRouter(ctx, cfg, portal, realm, rdb, log)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("account gateway listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
