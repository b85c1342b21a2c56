package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/course-registration/pkg/config"
)

// NewRedis returns a configured Redis client after a successful ping.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", Address(cfg), err)
	}

	return client, nil
}

// Options maps the application config onto go-redis options.
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     Address(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Address renders host:port.
func Address(cfg config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
