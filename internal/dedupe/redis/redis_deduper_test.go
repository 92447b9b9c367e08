package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"walletbot/internal/config"
	rdb "walletbot/internal/stores/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

// ========== Test Helpers ==========

func createTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func setupTestRedisForDeduper(t *testing.T) (*miniredis.Miniredis, *rdb.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := &rdb.Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr: mr.Addr(),
		}),
	}
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func createTestDedupeConfig(prefix string, ttl time.Duration) *config.DedupeConfig {
	return &config.DedupeConfig{
		Prefix: prefix,
		TTL:    ttl,
	}
}

func newTestDeduper(t *testing.T, prefix string, ttl time.Duration) (*miniredis.Miniredis, *rdb.Client, *RedisDedupe) {
	t.Helper()

	mr, client := setupTestRedisForDeduper(t)
	d, err := NewRedisDeduper(createTestLogger(), createTestDedupeConfig(prefix, ttl), client)
	require.NoError(t, err)

	return mr, client, d
}

// ========== Constructor Tests ==========

func TestNewRedisDeduper_Success(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), createTestDedupeConfig("test:update:", 24*time.Hour), client)

	require.NoError(t, err)
	assert.Equal(t, "test:update:", deduper.prefix)
	assert.Equal(t, 24*time.Hour, deduper.ttl)
}

func TestNewRedisDeduper_NilConfig(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), nil, client)

	assert.Nil(t, deduper)
	assert.ErrorContains(t, err, "config is required")
}

func TestNewRedisDeduper_NilRedis(t *testing.T) {
	deduper, err := NewRedisDeduper(createTestLogger(), createTestDedupeConfig("x:", time.Hour), nil)

	assert.Nil(t, deduper)
	assert.ErrorContains(t, err, "redis client is required")
}

func TestNewRedisDeduper_DefaultPrefix(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), createTestDedupeConfig("", time.Hour), client)

	require.NoError(t, err)
	assert.Equal(t, "dedupe:", deduper.prefix)
}

// ========== Seen Tests ==========

func TestRedisDedupe_Seen_FirstTime(t *testing.T) {
	mr, _, deduper := newTestDeduper(t, "test:update:", time.Hour)

	seen, err := deduper.Seen(context.Background(), "123456")

	require.NoError(t, err)
	assert.False(t, seen)
	assert.True(t, mr.Exists("test:update:123456"))
	assert.Equal(t, time.Hour, mr.TTL("test:update:123456"))
}

func TestRedisDedupe_Seen_SecondTime(t *testing.T) {
	_, _, deduper := newTestDeduper(t, "test:update:", time.Hour)
	ctx := context.Background()

	seen, err := deduper.Seen(ctx, "42")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = deduper.Seen(ctx, "42")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisDedupe_Seen_MultipleIDs(t *testing.T) {
	_, _, deduper := newTestDeduper(t, "test:update:", time.Hour)
	ctx := context.Background()

	testCases := []struct {
		id   string
		seen bool
	}{
		{"1", false},
		{"2", false},
		{"1", true},
		{"3", false},
		{"2", true},
		{"3", true},
	}

	for i, tc := range testCases {
		seen, err := deduper.Seen(ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.seen, seen, "step %d id %s", i, tc.id)
	}
}

func TestRedisDedupe_Seen_ExpiresAfterTTL(t *testing.T) {
	mr, _, deduper := newTestDeduper(t, "test:update:", time.Minute)
	ctx := context.Background()

	seen, _ := deduper.Seen(ctx, "7")
	assert.False(t, seen)

	mr.FastForward(2 * time.Minute)

	seen, err := deduper.Seen(ctx, "7")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDedupe_Seen_PrefixIsolation(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)
	ctx := context.Background()

	d1, err := NewRedisDeduper(createTestLogger(), createTestDedupeConfig("bot1:", time.Hour), client)
	require.NoError(t, err)
	d2, err := NewRedisDeduper(createTestLogger(), createTestDedupeConfig("bot2:", time.Hour), client)
	require.NoError(t, err)

	seen, _ := d1.Seen(ctx, "100")
	assert.False(t, seen)
	seen, _ = d1.Seen(ctx, "100")
	assert.True(t, seen)
	seen, _ = d2.Seen(ctx, "100")
	assert.False(t, seen, "different prefix keeps its own set")
}

func TestRedisDedupe_Seen_ConcurrentAccess(t *testing.T) {
	_, _, deduper := newTestDeduper(t, "test:update:", time.Hour)

	const workers = 10
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		go func() {
			seen, err := deduper.Seen(context.Background(), "concurrent")
			assert.NoError(t, err)
			results <- seen
		}()
	}

	fresh := 0
	for i := 0; i < workers; i++ {
		if !<-results {
			fresh++
		}
	}

	assert.Equal(t, 1, fresh, "SETNX lets exactly one caller through")
}

func TestRedisDedupe_Seen_ManySequential(t *testing.T) {
	_, client, deduper := newTestDeduper(t, "test:update:", time.Hour)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		seen, err := deduper.Seen(ctx, strconv.Itoa(i))
		require.NoError(t, err)
		assert.False(t, seen)
	}

	keys, err := client.Keys(ctx, "test:update:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 500)
}

// ========== Failure Tests ==========

func TestRedisDedupe_Seen_RedisFailure(t *testing.T) {
	mr, _, deduper := newTestDeduper(t, "test:update:", time.Hour)
	mr.Close()

	seen, err := deduper.Seen(context.Background(), "1")

	assert.False(t, seen)
	assert.ErrorContains(t, err, "redis SetNX error")
}

func TestRedisDedupe_Seen_ContextCancelled(t *testing.T) {
	_, _, deduper := newTestDeduper(t, "test:update:", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seen, err := deduper.Seen(ctx, "1")
	assert.Error(t, err)
	assert.False(t, seen)
}
