// Package redis backs the shared signup rate limit.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Signup must never stall on the limiter, so every network step is short.
const (
	dialTimeout = 2 * time.Second
	ioTimeout   = 500 * time.Millisecond
	pingTimeout = 2 * time.Second
)

// Client owns one go-redis connection pool.
type Client struct {
	rdb *goredis.Client
}

func New(addr, password string, db int) *Client {
	opts := &goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
	return &Client{rdb: goredis.NewClient(opts)}
}

// Ping checks reachability, bounded by pingTimeout even when ctx has no
// deadline.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.rdb.Close() }
