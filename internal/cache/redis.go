// Package cache содержит кэш сводки на Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/projectdesk/internal/model"
)

const keyPrefix = "projectdesk:dashboard:"

// DashboardCache хранит сводки пользователей в Redis с ограниченным временем жизни.
type DashboardCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisClient создаёт клиент Redis.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

// NewDashboardCache создаёт кэш сводки.
func NewDashboardCache(rdb redis.Cmdable, ttl time.Duration) *DashboardCache {
	return &DashboardCache{rdb: rdb, ttl: ttl}
}

// DashboardKey возвращает ключ сводки пользователя.
func DashboardKey(ownerID string) string {
	return keyPrefix + ownerID
}

// GetDashboard возвращает сохранённую сводку. Второе значение false, если записи нет.
func (c *DashboardCache) GetDashboard(ctx context.Context, ownerID string) (*model.Dashboard, bool, error) {
	data, err := c.rdb.Get(ctx, DashboardKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get dashboard: %w", err)
	}

	d, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// SetDashboard сохраняет сводку на время жизни кэша.
func (c *DashboardCache) SetDashboard(ctx context.Context, ownerID string, d *model.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	if err := c.rdb.Set(ctx, DashboardKey(ownerID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set dashboard: %w", err)
	}
	return nil
}

// Invalidate удаляет сводку пользователя.
func (c *DashboardCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.rdb.Del(ctx, DashboardKey(ownerID)).Err()
}

func decode(data []byte) (*model.Dashboard, error) {
	var d model.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dashboard: %w", err)
	}
	return &d, nil
}
