package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventix/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(client, logger.Discard()), mr
}

func TestSetGetAndExpiry(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", item{Name: "a", Count: 2}, time.Minute))

	var got item
	require.NoError(t, svc.Get(ctx, "k", &got))
	assert.Equal(t, item{Name: "a", Count: 2}, got)
	assert.True(t, svc.Exists(ctx, "k"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, svc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestDeletePattern(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, k := range []string{"eventix:events:list:page:1", "eventix:events:list:page:2", "eventix:events:detail:uuid:x"} {
		require.NoError(t, svc.Set(ctx, k, 1, time.Minute))
	}

	require.NoError(t, svc.DeletePattern(ctx, "eventix:events:list:*"))

	assert.False(t, svc.Exists(ctx, "eventix:events:list:page:1"))
	assert.False(t, svc.Exists(ctx, "eventix:events:list:page:2"))
	assert.True(t, svc.Exists(ctx, "eventix:events:detail:uuid:x"))
}

func TestGetOrSetFetchesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return item{Name: "fresh", Count: calls}, nil
	}

	var first, second item
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &first))
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &second))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrSetPropagatesFetchError(t *testing.T) {
	svc, _ := newTestService(t)
	boom := errors.New("boom")

	var dest item
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) { return nil, boom }, &dest)
	assert.ErrorIs(t, err, boom)
}
