package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-relay/internal/domain"
)

func TestMemoryDedup_ForgetsSettledReminders(t *testing.T) {
	d := NewMemoryDedup()
	ctx := context.Background()
	r := domain.Reminder{ID: "r1"}

	ok, err := d.ShouldAlert(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.ShouldAlert(ctx, r)
	assert.False(t, ok)

	d.Settle(ctx, nil)
	ok, _ = d.ShouldAlert(ctx, r)
	assert.True(t, ok, "a reminder that left the due set can alert again")
}

func TestRedisDedup_OncePerWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewRedisDedup(client, time.Minute)
	ctx := context.Background()
	r := domain.Reminder{ID: "r1"}

	ok, err := d.ShouldAlert(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.ShouldAlert(ctx, r)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("relay:reminder:alerted:r1"))
	assert.Equal(t, time.Minute, mr.TTL("relay:reminder:alerted:r1"))

	mr.FastForward(61 * time.Second)
	ok, err = d.ShouldAlert(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok, "window expired")
}

func TestRedisDedup_SharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	a := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	r := domain.Reminder{ID: "r1"}
	first, _ := NewRedisDedup(a, time.Minute).ShouldAlert(ctx, r)
	second, _ := NewRedisDedup(b, time.Minute).ShouldAlert(ctx, r)
	assert.True(t, first)
	assert.False(t, second)
}

type failingSetNX struct{}

func (failingSetNX) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetErr(errors.New("redis down"))
	return cmd
}

func TestRedisDedup_FailsOpen(t *testing.T) {
	d := &redisDedup{client: failingSetNX{}, window: time.Minute, prefix: "relay:reminder:alerted:"}
	ok, err := d.ShouldAlert(context.Background(), domain.Reminder{ID: "r1"})
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestNewRedisDedup_NilClient(t *testing.T) {
	assert.Nil(t, NewRedisDedup(nil, time.Minute))
}
