package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key, e.g. "nexus:".
	KeyPrefix  string
	QuotaBytes int
}

// RedisStore keeps values as plain Redis strings.
type RedisStore struct {
	client *redis.Client
	prefix string
	quota  int
}

var _ Store = &RedisStore{}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis store: empty addr")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis store: ping %s", opts.Addr)
	}
	return newRedisStore(client, opts), nil
}

func newRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	return &RedisStore{client: client, prefix: opts.KeyPrefix, quota: opts.QuotaBytes}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis store: get")
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s.quota > 0 && len(value) > s.quota {
		return quotaError("redis store", len(value), s.quota)
	}
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		if isRedisOOM(err) {
			return errors.Wrap(ErrQuotaExceeded, "redis store: "+err.Error())
		}
		return errors.Wrap(err, "redis store: set")
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, s.key(key)).Err(), "redis store: remove")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// isRedisOOM reports whether the server refused a write under maxmemory.
func isRedisOOM(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM ")
}
