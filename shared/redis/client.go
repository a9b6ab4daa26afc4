package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/config"
)

// Options configures the connection pool. Zero values fall back to the
// defaults below.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	defaultAddr         = "localhost:6379"
	defaultPoolSize     = 10
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// OptionsFromEnv reads REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
// and the REDIS_*_TIMEOUT durations.
func OptionsFromEnv() Options {
	return Options{
		Addr:         config.GetEnv("REDIS_ADDR", defaultAddr),
		Password:     config.GetEnv("REDIS_PASSWORD", ""),
		DB:           config.GetEnvInt("REDIS_DB", 0),
		PoolSize:     config.GetEnvInt("REDIS_POOL_SIZE", defaultPoolSize),
		DialTimeout:  config.GetEnvDuration("REDIS_DIAL_TIMEOUT", defaultDialTimeout),
		ReadTimeout:  config.GetEnvDuration("REDIS_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout: config.GetEnvDuration("REDIS_WRITE_TIMEOUT", defaultWriteTimeout),
	}
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = defaultAddr
	}
	if o.PoolSize <= 0 {
		o.PoolSize = defaultPoolSize
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	return o
}

type Client struct {
	*redis.Client
}

// NewClient dials Redis and pings it once; a service that cannot reach Redis
// at startup does not start.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	opts = opts.withDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("poolSize", opts.PoolSize),
	)
	return &Client{Client: rdb}, nil
}

// Check pings Redis; it backs the /health endpoint.
func (c *Client) Check(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
