package microservices

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Temutjin2k/ride-match/config"
	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler"
	"github.com/Temutjin2k/ride-match/internal/adapter/memory"
	"github.com/Temutjin2k/ride-match/internal/adapter/redisgeo"
	"github.com/Temutjin2k/ride-match/internal/service/location"
	"github.com/Temutjin2k/ride-match/pkg/logger"
)

// locationStore picks the sample store: Redis when enabled, otherwise process memory.
// The returned client is nil for the memory store.
func locationStore(ctx context.Context, cfg config.Config, log logger.Logger, checks map[string]handler.Pinger) (location.Store, *redis.Client, error) {
	if !cfg.Redis.Enabled {
		log.Info(ctx, "using in-memory rider location store")
		return memory.NewLocationStore(cfg.Location.MaxAge), nil, nil
	}

	client, err := redisgeo.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	store := redisgeo.NewLocationStore(client, cfg.Redis.GeoKey, cfg.Location.MaxAge)
	checks["redis"] = store

	log.Info(ctx, "connected to redis", "addr", cfg.Redis.Addr)
	return store, client, nil
}

func closeRedis(ctx context.Context, client *redis.Client, log logger.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Warn(ctx, "failed to close redis client", "error", err.Error())
	}
}
