package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/scout/internal/connect"
	"github.com/MrSnakeDoc/scout/internal/logger"
)

// ConnectOptions defines the Redis client and its connection retry behavior.
type ConnectOptions struct {
	Addr           string        // Redis address (ex: "localhost:6379")
	User           string        // Optional username
	Password       string        // Optional password
	RedisDB        int           // Redis DB number
	DialTimeout    time.Duration // Redis dial timeout
	ReadTimeout    time.Duration // Redis read timeout
	WriteTimeout   time.Duration // Redis write timeout
	PoolSize       int           // Redis connection pool size
	ConnectTimeout time.Duration // Total time allowed for connection attempts (ex: 30s)
	RetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	MaxWait        time.Duration // max wait between retries (ex: 10s)
	PingTimeout    time.Duration // timeout for each ping attempt (ex: 2s)
	WarnThreshold  int           // warn after this many attempts
}

// New creates a Redis client and blocks until it answers PING or
// ConnectTimeout is reached.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	retry := connect.Options{
		Service:        "redis",
		Addr:           opts.Addr,
		ConnectTimeout: opts.ConnectTimeout,
		RetryInterval:  opts.RetryInterval,
		MaxWait:        opts.MaxWait,
		PingTimeout:    opts.PingTimeout,
		WarnThreshold:  opts.WarnThreshold,
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	err := connect.WithRetry(ctx, retry, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
