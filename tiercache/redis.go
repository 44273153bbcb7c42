package tiercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-backed Blobs tier, grounded on the
// teacher's original redis.Config but adapted from the gomodule/redigo
// connection-pool API to go-redis/v9's client, which is what this
// module's go.mod actually carries.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

type redisBlobs struct {
	client *redis.Client
}

func redisKey(key string) string {
	return "httpengine:" + key
}

// NewRedis connects to a Redis server and returns a Blobs tier backed by
// it. The caller should Close it when done.
func NewRedis(config RedisConfig) (Blobs, error) {
	if config.Address == "" {
		return nil, errors.New("tiercache: redis address is required")
	}
	config = config.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("tiercache: failed to connect to redis: %w", err)
	}
	return &redisBlobs{client: client}, nil
}

// NewRedisWithClient wraps an already-constructed go-redis client.
func NewRedisWithClient(client *redis.Client) Blobs {
	return &redisBlobs{client: client}
}

func (c *redisBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: redis get failed for key %q: %w", key, err)
	}
	return data, true, nil
}

func (c *redisBlobs) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("tiercache: redis set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *redisBlobs) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("tiercache: redis delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *redisBlobs) Close() error {
	return c.client.Close()
}
