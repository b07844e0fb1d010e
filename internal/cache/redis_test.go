package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestFlightMarker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)

	a := NewFlightMarker(client, time.Minute)
	b := NewFlightMarker(client, time.Minute)

	ok, err := a.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "second process must wait")

	ok, err = b.Acquire(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, a.Release(ctx, "k1"))
	ok, err = b.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlightMarker_ReleaseOnlyOwn(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	a := NewFlightMarker(client, time.Minute)
	b := NewFlightMarker(client, time.Minute)

	ok, err := a.Acquire(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, "k1"))
	assert.True(t, mr.Exists(flightKeyPrefix+"k1"))

	require.NoError(t, a.Release(ctx, "k1"))
	assert.False(t, mr.Exists(flightKeyPrefix+"k1"))
}

func TestFlightMarker_Expires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	a := NewFlightMarker(client, 30*time.Second)
	b := NewFlightMarker(client, 30*time.Second)

	ok, err := a.Acquire(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = b.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlightMarker_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	m := NewFlightMarker(client, time.Minute)
	_, err := m.Acquire(context.Background(), "k1")
	require.Error(t, err)
}
