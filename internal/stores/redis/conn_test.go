package redis

import (
	"context"
	"testing"
	"time"

	"walletbot/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), &config.RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Health(context.Background()))
}

func TestNew_NilConfig(t *testing.T) {
	c, err := New(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, err := New(context.Background(), &config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestHealth_AfterServerStops(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}
