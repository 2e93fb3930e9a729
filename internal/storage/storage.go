// Package storage provides the key-value persistence used for widget
// transcripts. It plays the role browser-local storage plays for a web page:
// string keys, string values, and a bounded quota.
package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrQuotaExceeded is returned (wrapped) by Set when the write does not fit.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a string key-value store.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// Options picks a backend for Open. Driver is memory, sqlite or redis.
type Options struct {
	Driver     string
	SQLitePath string
	Redis      RedisOptions
	// QuotaBytes applies to every backend; 0 disables it.
	QuotaBytes int
}

// Open builds the backend selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "memory":
		return NewMemoryStore(opts.QuotaBytes), nil
	case "sqlite":
		dsn, err := SQLiteDSNForFile(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn, opts.QuotaBytes)
	case "redis":
		redisOpts := opts.Redis
		redisOpts.QuotaBytes = opts.QuotaBytes
		return NewRedisStore(ctx, redisOpts)
	default:
		return nil, errors.Errorf("storage: unknown driver %q", opts.Driver)
	}
}

func quotaError(backend string, size, quota int) error {
	return errors.Wrapf(ErrQuotaExceeded, "%s: %d bytes exceeds quota of %d", backend, size, quota)
}
