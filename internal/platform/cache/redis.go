// Package cache wires the Redis client shared by the identity cache and the
// background queue.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout    = 5 * time.Second
	defaultTimeout = 2 * time.Second
)

// Options tunes the Redis client.
type Options struct {
	Password string
	DB       int
	// Timeout bounds dial, read and write calls; zero means two seconds.
	Timeout time.Duration
}

func (o Options) redisOptions(addr string) *redis.Options {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &redis.Options{
		Addr:         addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}

// New connects to addr and pings it once before returning the client.
func New(ctx context.Context, addr string, opts Options) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("platform/cache: address required")
	}
	client := redis.NewClient(opts.redisOptions(addr))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, err)
	}
	return client, nil
}
