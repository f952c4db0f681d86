package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Fortnox: FortnoxConfig{
			APIURL:   "https://api.fortnox.se/3/",
			TokenURL: "https://apps.fortnox.se/oauth-v1/token",
			Provider: "fortnox",
			Timeout:  30 * time.Second,
		},
		RateLimit: RateLimitConfig{Requests: 5, Window: time.Minute},
		Store: StoreConfig{
			Backend: BackendMongo,
			Mongo:   MongoStoreConfig{Database: "findus"},
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing api url", modify: func(c *Config) { c.Fortnox.APIURL = "" }, wantErr: "fortnox.api_url"},
		{name: "missing token url", modify: func(c *Config) { c.Fortnox.TokenURL = "" }, wantErr: "fortnox.token_url"},
		{name: "zero timeout", modify: func(c *Config) { c.Fortnox.Timeout = 0 }, wantErr: "fortnox.timeout"},
		{name: "negative timeout", modify: func(c *Config) { c.Fortnox.Timeout = -time.Second }, wantErr: "fortnox.timeout"},
		{name: "zero requests", modify: func(c *Config) { c.RateLimit.Requests = 0 }, wantErr: "rate_limit.requests"},
		{name: "zero window", modify: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "rate_limit.window"},
		{name: "unknown backend", modify: func(c *Config) { c.Store.Backend = "sqlite" }, wantErr: "store.backend"},
		{name: "file without path", modify: func(c *Config) {
			c.Store.Backend = BackendFile
		}, wantErr: "store.file.path"},
		{name: "file with path", modify: func(c *Config) {
			c.Store.Backend = BackendFile
			c.Store.File.Path = "/tmp/creds.json"
		}},
		{name: "redis without addr", modify: func(c *Config) { c.Store.Backend = BackendRedis }, wantErr: "store.redis.addr"},
		{name: "keyring", modify: func(c *Config) {
			c.Store.Backend = BackendKeyring
			c.Store.Keyring.Service = "fortnox-client"
		}},
		{name: "bad sort order", modify: func(c *Config) { c.Export.SortOrder = "random" }, wantErr: "export.sort_order"},
		{name: "bad format", modify: func(c *Config) { c.Export.Format = "xml" }, wantErr: "export.format"},
		{name: "negative pages", modify: func(c *Config) { c.Export.Pages = -1 }, wantErr: "export.pages"},
		{name: "bad level", modify: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "invalid logging level"},
		{name: "bad logging format", modify: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "invalid logging format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fortnox:
  timeout: 10s
rate_limit:
  requests: 240
  window: 60s
auth:
  degrade_on_refresh_failure: true
store:
  backend: file
  file:
    path: /var/lib/fortnox/credentials.json
export:
  format: table
  filter: 'Year == 2023 && !Booked'
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Fortnox.Timeout)
	assert.Equal(t, "https://api.fortnox.se/3/", cfg.Fortnox.APIURL)
	assert.Equal(t, 240, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Auth.DegradeOnRefreshFailure)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/fortnox/credentials.json", cfg.Store.File.Path)
	assert.Equal(t, "table", cfg.Export.Format)
	assert.Equal(t, "Year == 2023 && !Booked", cfg.Export.Filter)
	assert.Equal(t, 29, cfg.Export.Pages)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 30*time.Second, cfg.Fortnox.Timeout)
	assert.Equal(t, BackendMongo, cfg.Store.Backend)
	assert.Equal(t, "findus", cfg.Store.Mongo.Database)
	assert.Equal(t, "credentials", cfg.Store.Mongo.Collection)
	assert.Equal(t, "invoices", cfg.Orders.Collection)
	assert.Equal(t, "descending", cfg.Export.SortOrder)
	assert.False(t, cfg.Auth.DegradeOnRefreshFailure)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	t.Run("legacy connection string", func(t *testing.T) {
		t.Setenv("DB_CONNECTION_STRING", "mongodb://localhost:27017/findus")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "mongodb://localhost:27017/findus", cfg.Store.Mongo.URI)
	})

	t.Run("prefixed variables", func(t *testing.T) {
		t.Setenv("FORTNOX_STORE_MONGO_URI", "mongodb://db:27017/findus")
		t.Setenv("FORTNOX_RATE_LIMIT_REQUESTS", "240")
		t.Setenv("FORTNOX_LOGGING_LEVEL", "warn")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "mongodb://db:27017/findus", cfg.Store.Mongo.URI)
		assert.Equal(t, 240, cfg.RateLimit.Requests)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: sqlite\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
