package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/PabloGalante/tutorchat/internal/adapters/storage/redis"
)

func newStore(t *testing.T, ttl time.Duration) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.NewStore(client, ttl), mr
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, 0)

	got, err := store.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Set(ctx, "visitor", []byte(`[]`)))
	got, err = store.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Clear(ctx, "visitor"))
	got, err = store.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, time.Hour)

	require.NoError(t, store.Set(ctx, "visitor", []byte(`[]`)))
	assert.Equal(t, time.Hour, mr.TTL("history:visitor"))

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: addr, MaxRetries: -1})
	defer client.Close()
	store := redisstore.NewStore(client, 0)

	_, err = store.Get(context.Background(), "visitor")
	assert.Error(t, err)
	assert.Error(t, store.Set(context.Background(), "visitor", []byte(`[]`)))
}
