// services/payment-service/internal/store/redis/idempotency.redis.go
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	Timeout   time.Duration
}

// IdempotencyStore claims webhook idempotency keys with SET NX so every replica sees the same
// claims.
type IdempotencyStore struct {
	rdb goredis.UniversalClient
	ns  string
}

var _ payment.IdempotencyStore = (*IdempotencyStore)(nil)

func NewClient(o Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
}

func NewIdempotencyStore(rdb goredis.UniversalClient, namespace string) *IdempotencyStore {
	if namespace == "" {
		namespace = "payment:webhook"
	}
	return &IdempotencyStore{rdb: rdb, ns: namespace}
}

func (s *IdempotencyStore) key(k string) string {
	return s.ns + ":" + k
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim %s: %w", key, err)
	}
	return ok, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(key), time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("redis: complete %s: %w", key, err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: release %s: %w", key, err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
