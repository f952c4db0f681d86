package credentials

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, "test"), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		store, _ := newTestRedisStore(t)

		_, err := store.Get(ctx, ProviderFortnox)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update keeps client fields", func(t *testing.T) {
		store, mr := newTestRedisStore(t)
		data, err := json.Marshal(seedCredentials())
		require.NoError(t, err)
		require.NoError(t, mr.Set("test:credentials:fortnox", string(data)))

		expires := time.Date(2023, 4, 12, 11, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, TokenUpdate{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresAt:    expires,
		}))

		got, err := store.Get(ctx, ProviderFortnox)
		require.NoError(t, err)
		assert.Equal(t, "new-access", got.AccessToken)
		assert.Equal(t, "new-refresh", got.RefreshToken)
		assert.True(t, expires.Equal(got.ExpiresAt))
		assert.Equal(t, "client-id", got.ClientIdentity)
		assert.Equal(t, "client-secret", got.ClientSecret)
		assert.Equal(t, time.Duration(0), mr.TTL("test:credentials:fortnox"), "records never expire")
	})

	t.Run("update creates missing record", func(t *testing.T) {
		store, mr := newTestRedisStore(t)

		require.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, TokenUpdate{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
		}))

		assert.True(t, mr.Exists("test:credentials:fortnox"))
		got, err := store.Get(ctx, ProviderFortnox)
		require.NoError(t, err)
		assert.Equal(t, ProviderFortnox, got.Provider)
		assert.Equal(t, "new-access", got.AccessToken)
		assert.Empty(t, got.ClientIdentity)
	})

	t.Run("corrupt value", func(t *testing.T) {
		store, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set("test:credentials:fortnox", "{not json"))

		_, err := store.Get(ctx, ProviderFortnox)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)

		err = store.UpdateTokens(ctx, ProviderFortnox, TokenUpdate{AccessToken: "new-access"})
		require.Error(t, err)
		val, getErr := mr.Get("test:credentials:fortnox")
		require.NoError(t, getErr)
		assert.Equal(t, "{not json", val, "corrupt record is not overwritten")
	})

	t.Run("server unavailable", func(t *testing.T) {
		store, mr := newTestRedisStore(t)
		mr.Close()

		_, err := store.Get(ctx, ProviderFortnox)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "acme"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	require.NoError(t, store.UpdateTokens(context.Background(), ProviderFortnox, TokenUpdate{AccessToken: "a"}))
	assert.True(t, mr.Exists("acme:credentials:fortnox"))
}
