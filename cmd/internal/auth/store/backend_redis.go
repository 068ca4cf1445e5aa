package store

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores records under <prefix>:<key> in Redis.
type RedisBackend struct {
	opts   *redis.Options
	prefix string

	mu     sync.Mutex
	client *redis.Client
}

// NewRedisBackend parses a redis:// URL. The connection is made on Open.
func NewRedisBackend(url, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "nuvem:session"
	}
	return &RedisBackend{opts: opts, prefix: prefix}, nil
}

// Open connects and pings. A previous client, if any, is replaced.
func (b *RedisBackend) Open(ctx context.Context) error {
	client := redis.NewClient(b.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}

	b.mu.Lock()
	old := b.client
	b.client = client
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (b *RedisBackend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	c, err := b.conn()
	if err != nil {
		return nil, err
	}
	v, err := c.Get(ctx, b.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, mapRedisErr(err)
}

func (b *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	c, err := b.conn()
	if err != nil {
		return err
	}
	return mapRedisErr(c.Set(ctx, b.prefix+":"+key, value, 0).Err())
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	c, err := b.conn()
	if err != nil {
		return err
	}
	return mapRedisErr(c.Del(ctx, b.prefix+":"+key).Err())
}

func (b *RedisBackend) Close() error {
	b.mu.Lock()
	c := b.client
	b.client = nil
	b.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}

func (b *RedisBackend) conn() (*redis.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil, ErrClosed
	}
	return b.client, nil
}

func mapRedisErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return err
}
