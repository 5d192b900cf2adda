// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"bookly/config"

	"github.com/go-redis/redis/v8"
)

// NewCacheClient builds a Redis client for the given logical DB and verifies
// the connection before handing it out.
func NewCacheClient(db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (DB %d): %v", db, err)
	}
	return client
}
