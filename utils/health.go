package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Mongo     bool      `json:"mongo"`
	Redis     bool      `json:"redis"`
	CheckedAt time.Time `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// StartHealthMonitor pings Mongo and Redis periodically and stores a
// snapshot for the health endpoint.
func StartHealthMonitor(client *mongo.Client, cache *redis.Client) {
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			status := HealthStatus{
				Mongo:     client.Ping(ctx, nil) == nil,
				Redis:     cache.Ping(ctx).Err() == nil,
				CheckedAt: time.Now(),
			}
			cancel()

			mu.Lock()
			currentHealth = status
			mu.Unlock()

			time.Sleep(30 * time.Second)
		}
	}()
}
