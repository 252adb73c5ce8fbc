// services/markers.go
package services

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// MarkerStore tracks which purchases already ran the secondary distribution
// phase to completion.
type MarkerStore interface {
	Done(ctx context.Context, purchaseID string) (bool, error)
	MarkDone(ctx context.Context, purchaseID string) error
}

// RedisMarkers keeps completion markers in Redis under distribution:<id>.
type RedisMarkers struct {
	client *redis.Client
}

// NewRedisMarkers wraps a Redis client as a MarkerStore. A nil client yields
// a nil MarkerStore, which the engine treats as markers disabled.
func NewRedisMarkers(client *redis.Client) MarkerStore {
	if client == nil {
		return nil
	}
	return &RedisMarkers{client: client}
}

func markerKey(purchaseID string) string {
	return "distribution:" + purchaseID
}

func (m *RedisMarkers) Done(ctx context.Context, purchaseID string) (bool, error) {
	n, err := m.client.Exists(ctx, markerKey(purchaseID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *RedisMarkers) MarkDone(ctx context.Context, purchaseID string) error {
	return m.client.Set(ctx, markerKey(purchaseID), 1, 0).Err()
}
