package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// ConnectRedis dials the Redis instance backing the rate-limit counters,
// once. A nil client is a valid outcome: the limiter fails open without it,
// so an unreachable Redis degrades throttling instead of taking the API
// down. Never dialed under APPENV=test.
func ConnectRedis() (*redis.Client, error) {
	var err error
	redisOnce.Do(func() {
		cfg := LoadConfig()
		if cfg != nil && cfg.AppEnv == "test" {
			return
		}

		rdb := redis.NewClient(redisOptions())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err = rdb.Ping(ctx).Err(); err != nil {
			redisClient = nil
			err = fmt.Errorf("redis ping failed: %w", err)
			return
		}

		redisClient = rdb
		log.Printf("Rate-limit store ready, redis at %s", rdb.Options().Addr)
	})
	return redisClient, err
}

func redisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if v, parseErr := strconv.Atoi(raw); parseErr == nil {
			db = v
		}
	}
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASS"),
		DB:       db,
	}
}

// GetRedisClient returns the shared client, or nil when Redis is not
// connected. Callers must treat nil as "no limiter backing store".
func GetRedisClient() *redis.Client {
	return redisClient
}

// SetRedisClientForTesting swaps the shared client so tests can inject a
// fake or force the nil fail-open path.
func SetRedisClientForTesting(client *redis.Client) {
	redisClient = client
}
