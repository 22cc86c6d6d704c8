// Package rediscache keeps resolved supporters in Redis so repeat requests
// skip the record store.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"example.com/eventcollector/internal/domain"
)

const keyPrefix = "supporter:"

// NewClient connects to the Redis server at url (redis://...) and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(clientID, publicKey string) string {
	return keyPrefix + clientID + ":" + publicKey
}

// Get reports whether the identity is cached.
func (c *Cache) Get(ctx context.Context, clientID, publicKey string) (domain.Supporter, bool, error) {
	raw, err := c.rdb.Get(ctx, key(clientID, publicKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Supporter{}, false, nil
	}
	if err != nil {
		return domain.Supporter{}, false, fmt.Errorf("redis get: %w", err)
	}

	var s domain.Supporter
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Supporter{}, false, fmt.Errorf("decode cached supporter: %w", err)
	}
	// keys are not escaped, so a colon in the client id could collide
	if s.ClientID != clientID || s.PublicKey != publicKey {
		return domain.Supporter{}, false, nil
	}
	return s, true, nil
}

func (c *Cache) Set(ctx context.Context, s domain.Supporter) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode supporter: %w", err)
	}
	if err := c.rdb.Set(ctx, key(s.ClientID, s.PublicKey), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
