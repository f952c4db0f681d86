package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Fortnox   FortnoxConfig   `mapstructure:"fortnox"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Store     StoreConfig     `mapstructure:"store"`
	Orders    OrdersConfig    `mapstructure:"orders"`
	Export    ExportConfig    `mapstructure:"export"`
	Update    UpdateConfig    `mapstructure:"update"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// FortnoxConfig holds the API endpoints and request settings
type FortnoxConfig struct {
	APIURL   string        `mapstructure:"api_url"`
	TokenURL string        `mapstructure:"token_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Provider string        `mapstructure:"provider"`
}

// RateLimitConfig bounds requests to Requests per Window
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// AuthConfig controls token refresh behaviour
type AuthConfig struct {
	DegradeOnRefreshFailure bool `mapstructure:"degrade_on_refresh_failure"`
}

// Store backends
const (
	BackendMongo   = "mongo"
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
)

// StoreConfig selects and configures the credential store
type StoreConfig struct {
	Backend string             `mapstructure:"backend"`
	Mongo   MongoStoreConfig   `mapstructure:"mongo"`
	File    FileStoreConfig    `mapstructure:"file"`
	Keyring KeyringStoreConfig `mapstructure:"keyring"`
	Redis   RedisStoreConfig   `mapstructure:"redis"`
}

// MongoStoreConfig holds the MongoDB connection used for credentials and orders
type MongoStoreConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FileStoreConfig holds the credentials file location
type FileStoreConfig struct {
	Path string `mapstructure:"path"`
}

// KeyringStoreConfig holds the OS keychain service name
type KeyringStoreConfig struct {
	Service string `mapstructure:"service"`
}

// RedisStoreConfig holds Redis connection details
type RedisStoreConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// OrdersConfig locates the local order documents
type OrdersConfig struct {
	Collection string `mapstructure:"collection"`
}

// ExportConfig holds defaults for the invoice export
type ExportConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Pages       int    `mapstructure:"pages"`
	Limit       int    `mapstructure:"limit"`
	SortOrder   string `mapstructure:"sort_order"`
	Format      string `mapstructure:"format"`
	Filter      string `mapstructure:"filter"`
}

// UpdateConfig holds the release source for self-update
type UpdateConfig struct {
	Repository string `mapstructure:"repository"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
