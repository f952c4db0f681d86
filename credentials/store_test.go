package credentials

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func seedCredentials() Credentials {
	return Credentials{
		Provider:       ProviderFortnox,
		AccessToken:    "old-access",
		RefreshToken:   "old-refresh",
		ClientIdentity: "client-id",
		ClientSecret:   "client-secret",
		ExpiresAt:      time.Date(2023, 4, 12, 10, 0, 0, 0, time.UTC),
	}
}

func newUpdate() TokenUpdate {
	return TokenUpdate{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    time.Date(2023, 4, 12, 11, 0, 0, 0, time.UTC),
	}
}

// assertUpdated checks the OAuth fields changed and the client fields survived
func assertUpdated(t *testing.T, c *Credentials) {
	t.Helper()
	assert.Equal(t, ProviderFortnox, c.Provider)
	assert.Equal(t, "new-access", c.AccessToken)
	assert.Equal(t, "new-refresh", c.RefreshToken)
	assert.True(t, c.ExpiresAt.Equal(newUpdate().ExpiresAt))
	assert.Equal(t, "client-id", c.ClientIdentity)
	assert.Equal(t, "client-secret", c.ClientSecret)
}

func TestCredentials(t *testing.T) {
	c := seedCredentials()
	assert.True(t, c.HasAccessToken())
	assert.False(t, c.Expired(c.ExpiresAt))
	assert.True(t, c.Expired(c.ExpiresAt.Add(time.Second)))

	c.AccessToken = ""
	assert.False(t, c.HasAccessToken())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(seedCredentials())

	c, err := store.Get(ctx, ProviderFortnox)
	require.NoError(t, err)
	assert.Equal(t, "old-access", c.AccessToken)

	_, err = store.Get(ctx, "visma")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, newUpdate()))
	assert.Equal(t, 1, store.Writes())

	c, err = store.Get(ctx, ProviderFortnox)
	require.NoError(t, err)
	assertUpdated(t, c)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Get(ctx, ProviderFortnox)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update preserves client fields", func(t *testing.T) {
		seed := seedCredentials()
		require.NoError(t, store.saveAll(map[string]*Credentials{ProviderFortnox: &seed}))

		require.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, newUpdate()))

		c, err := store.Get(ctx, ProviderFortnox)
		require.NoError(t, err)
		assertUpdated(t, c)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("corrupt file", func(t *testing.T) {
		badPath := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(badPath, []byte("{not json"), 0o600))

		bad, err := NewFileStore(badPath)
		require.NoError(t, err)
		_, err = bad.Get(ctx, ProviderFortnox)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse credentials file")
	})
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestFileStoreLockIsReentrant(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	unlock, err := store.Lock(ctx, ProviderFortnox)
	require.NoError(t, err)

	// UpdateTokens takes the same lock while the caller holds it.
	require.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, newUpdate()))

	require.NoError(t, unlock())
	require.NoError(t, unlock(), "second release is a no-op")
	assert.Equal(t, 0, store.held)
}

func TestFileStoreLockExcludesOtherHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	second, err := NewFileStore(path)
	require.NoError(t, err)

	unlock, err := first.Lock(context.Background(), ProviderFortnox)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx, ProviderFortnox)
	require.Error(t, err)

	require.NoError(t, unlock())

	unlock, err = second.Lock(context.Background(), ProviderFortnox)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestFileStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, newUpdate()))
		}()
	}
	wg.Wait()

	c, err := store.Get(ctx, ProviderFortnox)
	require.NoError(t, err)
	assert.Equal(t, "new-access", c.AccessToken)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	store := NewKeyringStore("")

	_, err := store.Get(ctx, ProviderFortnox)
	require.ErrorIs(t, err, ErrNotFound)

	seed := seedCredentials()
	require.NoError(t, store.Put(&seed))
	require.NoError(t, store.UpdateTokens(ctx, ProviderFortnox, newUpdate()))

	c, err := store.Get(ctx, ProviderFortnox)
	require.NoError(t, err)
	assertUpdated(t, c)
}

func TestRedisStoreKey(t *testing.T) {
	store := NewRedisStoreWithClient(nil, "")
	assert.Equal(t, "fortnox-client:credentials:fortnox", store.key(ProviderFortnox))

	store = NewRedisStoreWithClient(nil, "acme")
	assert.Equal(t, "acme:credentials:fortnox", store.key(ProviderFortnox))
}

func TestNewRedisStoreRequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address is required")
}
