package cache

import (
	"context"
	"fmt"

	"live_contest/internal/platform/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ConnectRedis opens the Fast Store client shared by every component.
func ConnectRedis(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("Successfully connected to Redis")
	return rdb, nil
}

func CloseRedis(rdb *redis.Client, log logrus.FieldLogger) {
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("Closing Redis connection failed")
			return
		}
		log.Info("Redis connection closed")
	}
}
