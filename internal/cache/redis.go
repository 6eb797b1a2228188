package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	Cli    *redis.Client
	prefix string
}

func New(addr, password string, db int, prefix string) (*Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{Cli: r, prefix: prefix}, nil
}

func (c *Client) Close() error { return c.Cli.Close() }

func (c *Client) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (c *Client) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.Cli.Set(ctx, c.key(key), val, ttl).Err()
}

// Get returns the cached value, or "" with no error on a miss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	s, err := c.Cli.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return s, err
}

func (c *Client) SetPresence(ctx context.Context, userID string, online bool) error {
	val := "0"
	if online {
		val = "1"
	}
	return c.Cli.Set(ctx, c.key("presence", userID), val, 0).Err()
}

func (c *Client) GetPresence(ctx context.Context, userID string) (bool, error) {
	s, err := c.Cli.Get(ctx, c.key("presence", userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s == "1", nil
}
