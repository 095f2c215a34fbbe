package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"evidence-agent/pkg/config"
)

// Redis 未配置 redis 时为 nil
var Redis *redis.Client

func initRedis(ctx context.Context, conf config.Redis) error {
	if Redis != nil {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        conf.Addr,
		Password:    conf.Password,
		DB:          conf.DB,
		DialTimeout: 5 * time.Second,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("connect redis: %w", err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return fmt.Errorf("expected PONG, got %s", pong)
	}
	Redis = client
	log.Infof("redis connection success: %s", conf.Addr)
	return nil
}
