package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values   map[string]int64
	expires  map[string]time.Duration
	failIncr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.failIncr != nil {
		return redis.NewIntResult(0, f.failIncr)
	}
	f.values[key]++
	return redis.NewIntResult(f.values[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisCounter(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	counter := NewRedisCounter(fake, "fieldops:")

	n, err := counter.Incr(ctx, "pin:staff:alice", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 15*time.Minute, fake.expires["fieldops:pin:staff:alice"])

	delete(fake.expires, "fieldops:pin:staff:alice")
	n, err = counter.Incr(ctx, "pin:staff:alice", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NotContains(t, fake.expires, "fieldops:pin:staff:alice", "window must not be extended")

	assert.Equal(t, int64(2), fake.values["fieldops:pin:staff:alice"])

	require.NoError(t, counter.Reset(ctx, "pin:staff:alice"))
	assert.NotContains(t, fake.values, "fieldops:pin:staff:alice")
}

func TestRedisCounter_IncrError(t *testing.T) {
	fake := newFakeRedis()
	fake.failIncr = errors.New("connection refused")
	counter := NewRedisCounter(fake, "")

	_, err := counter.Incr(context.Background(), "k", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, fake.expires)
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(func() time.Time { return now })

	for i := 1; i <= 3; i++ {
		n, err := counter.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	now = now.Add(59 * time.Second)
	n, err := counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "window is not extended")

	now = now.Add(time.Second)
	n, err = counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window elapsed")

	require.NoError(t, counter.Reset(ctx, "k"))
	n, err = counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
