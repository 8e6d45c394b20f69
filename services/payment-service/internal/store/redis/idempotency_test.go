package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimRelease(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := NewClient(Options{Addr: addr, Timeout: time.Second})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewIdempotencyStore(rdb, "test:"+uuid.NewString())
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	first, err := s.Claim(ctx, "cardgate:evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.Claim(ctx, "cardgate:evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "second claim must report a duplicate")

	require.NoError(t, s.Release(ctx, "cardgate:evt-1"))
	again, err := s.Claim(ctx, "cardgate:evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)

	require.NoError(t, s.Complete(ctx, "cardgate:evt-1", time.Hour))
	ttl, err := rdb.TTL(ctx, s.key("cardgate:evt-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute, "complete must extend the lease")
}

func TestLeaseLapses(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := NewClient(Options{Addr: addr, Timeout: time.Second})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewIdempotencyStore(rdb, "test:"+uuid.NewString())
	ctx := context.Background()

	first, err := s.Claim(ctx, "cardgate:evt-2", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, first)

	require.Eventually(t, func() bool {
		ok, err := s.Claim(ctx, "cardgate:evt-2", time.Minute)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond, "an abandoned lease must lapse")
}
