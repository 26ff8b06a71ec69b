// Package redisstore keeps reflection cooldowns in Redis so several engine
// processes can share one cooldown clock.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

// CooldownStore implements store.CooldownStore on Redis. Keys are
// "{prefix}:cooldown:{companionID}:{type}" holding the firing time in Unix nanoseconds.
type CooldownStore struct {
	client redis.UniversalClient
	prefix string
}

var _ store.CooldownStore = (*CooldownStore)(nil)

// Config configures the Redis cooldown store.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "companion"
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*CooldownStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string) *CooldownStore {
	if prefix == "" {
		prefix = "companion"
	}
	return &CooldownStore{client: client, prefix: prefix}
}

func (c *CooldownStore) key(k model.CooldownKey) string {
	return fmt.Sprintf("%s:cooldown:%d:%s", c.prefix, k.CompanionID, k.Type)
}

// LoadCooldown returns the last firing time of k.
func (c *CooldownStore) LoadCooldown(ctx context.Context, k model.CooldownKey) (time.Time, bool, error) {
	v, err := c.client.Get(ctx, c.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get cooldown %s: %w", c.key(k), err)
	}
	ns, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode cooldown %s: %w", c.key(k), err)
	}
	return time.Unix(0, ns).UTC(), true, nil
}

// SaveCooldown records the firing time of k. Entries expire once the
// interval has long passed; an expired key reads as "never fired", which is
// the same answer ShouldReflect would give.
func (c *CooldownStore) SaveCooldown(ctx context.Context, k model.CooldownKey, t time.Time) error {
	ttl := time.Duration(0)
	if iv, ok := model.CooldownIntervals[k.Type]; ok {
		ttl = 2 * iv
	}
	if err := c.client.Set(ctx, c.key(k), strconv.FormatInt(t.UnixNano(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("set cooldown %s: %w", c.key(k), err)
	}
	return nil
}

// ClearCooldown deletes the key for k.
func (c *CooldownStore) ClearCooldown(ctx context.Context, k model.CooldownKey) error {
	if err := c.client.Del(ctx, c.key(k)).Err(); err != nil {
		return fmt.Errorf("del cooldown %s: %w", c.key(k), err)
	}
	return nil
}

// Close closes the underlying client.
func (c *CooldownStore) Close() error {
	return c.client.Close()
}
