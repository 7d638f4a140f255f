package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds every Redis round trip when no timeout is configured.
const DefaultTimeout = 2 * time.Second

const compareAndSwapScript = `
local cur = redis.call("GET", KEYS[1])
if not cur then
  return -1
end
if cur == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  return 1
end
return 0
`

var compareAndSwapLua = redis.NewScript(compareAndSwapScript)

// RedisStore implements Store and Swapper on top of go-redis.
//
// Performance: one round trip per call; CompareAndSwap is a single EVALSHA.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix namespaces every key, e.g. "memo:" turns RT:a@b.co into
// memo:RT:a@b.co.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithTimeout sets the per-call deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStore wraps client. The client's lifecycle stays with the caller.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}

	s := &RedisStore{client: client, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable(err)
	}
	return val, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// CompareAndSwap replaces key's value with value only if it currently equals
// old. A missing key fails with ErrNotFound.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	if err := validateSet(key, ttl); err != nil {
		return false, err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := compareAndSwapLua.Run(ctx, s.client, []string{s.key(key)}, old, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	if n < 0 {
		return false, ErrNotFound
	}
	return n == 1, nil
}

// Ping checks connectivity within the store timeout.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
