package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PayLink/internal/app/model"
)

// URLCache stores resolved short URLs keyed by short code.
type URLCache struct {
	client *redis.Client
	keys   Keyspace
	ttl    time.Duration
}

// NewURLCache returns a cache whose entries live under keys and expire after ttl.
func NewURLCache(client *redis.Client, keys Keyspace, ttl time.Duration) *URLCache {
	return &URLCache{client: client, keys: keys, ttl: ttl}
}

func (c *URLCache) key(code string) string {
	return c.keys.Key("url", code)
}

type cachedURL struct {
	ID          uint   `json:"id"`
	UserID      uint   `json:"user_id"`
	OriginalURL string `json:"original_url"`
	ShortCode   string `json:"short_code"`
	Active      bool   `json:"active"`
}

// Get returns the cached URL for code; ok is false on a miss.
func (c *URLCache) Get(ctx context.Context, code string) (*model.URL, bool, error) {
	raw, err := c.client.Get(ctx, c.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry cachedURL
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}
	return &model.URL{
		ID:          entry.ID,
		UserID:      entry.UserID,
		OriginalURL: entry.OriginalURL,
		ShortCode:   entry.ShortCode,
		Active:      entry.Active,
	}, true, nil
}

func (c *URLCache) Set(ctx context.Context, url *model.URL) error {
	raw, err := json.Marshal(cachedURL{
		ID:          url.ID,
		UserID:      url.UserID,
		OriginalURL: url.OriginalURL,
		ShortCode:   url.ShortCode,
		Active:      url.Active,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(url.ShortCode), raw, c.ttl).Err()
}

func (c *URLCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}
