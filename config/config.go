package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FORTNOX_STORE_BACKEND
const EnvPrefix = "FORTNOX"

// Load loads the configuration from file and environment. A missing config
// file is only an error when configPath names it explicitly.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DB_CONNECTION_STRING predates the prefixed variables
	_ = v.BindEnv("store.mongo.uri", EnvPrefix+"_STORE_MONGO_URI", "DB_CONNECTION_STRING")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".fortnox-client"))
		}

		// Check /etc
		v.AddConfigPath("/etc/fortnox-client/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Fortnox defaults
	v.SetDefault("fortnox.api_url", "https://api.fortnox.se/3/")
	v.SetDefault("fortnox.token_url", "https://apps.fortnox.se/oauth-v1/token")
	v.SetDefault("fortnox.timeout", "30s")
	v.SetDefault("fortnox.provider", "fortnox")

	// Conservative margin below the documented 25 requests per 5 seconds
	v.SetDefault("rate_limit.requests", 5)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("auth.degrade_on_refresh_failure", false)

	// Store defaults
	v.SetDefault("store.backend", BackendMongo)
	v.SetDefault("store.mongo.uri", "")
	v.SetDefault("store.mongo.database", "findus")
	v.SetDefault("store.mongo.collection", "credentials")
	v.SetDefault("store.mongo.timeout", "10s")
	v.SetDefault("store.file.path", defaultCredentialsPath())
	v.SetDefault("store.keyring.service", "fortnox-client")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "fortnox-client")

	v.SetDefault("orders.collection", "invoices")

	// Export defaults
	v.SetDefault("export.concurrency", 2)
	v.SetDefault("export.pages", 29)
	v.SetDefault("export.limit", 100)
	v.SetDefault("export.sort_order", "descending")
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.filter", "")

	v.SetDefault("update.repository", "s0up4200/fortnox-client")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, ".fortnox-client", "credentials.json")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Fortnox.APIURL == "" {
		return fmt.Errorf("fortnox.api_url is required")
	}
	if cfg.Fortnox.TokenURL == "" {
		return fmt.Errorf("fortnox.token_url is required")
	}
	if cfg.Fortnox.Provider == "" {
		return fmt.Errorf("fortnox.provider is required")
	}
	if cfg.Fortnox.Timeout <= 0 {
		return fmt.Errorf("fortnox.timeout must be positive, got %s", cfg.Fortnox.Timeout)
	}

	if cfg.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive, got %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", cfg.RateLimit.Window)
	}

	if err := validateStore(&cfg.Store); err != nil {
		return err
	}

	if cfg.Export.Pages < 0 || cfg.Export.Limit < 0 || cfg.Export.Concurrency < 0 {
		return fmt.Errorf("export.pages, export.limit and export.concurrency must not be negative")
	}

	validSortOrders := map[string]bool{
		"":           true,
		"ascending":  true,
		"descending": true,
	}
	if !validSortOrders[cfg.Export.SortOrder] {
		return fmt.Errorf("invalid export.sort_order: %s (must be 'ascending' or 'descending')", cfg.Export.SortOrder)
	}

	validOutputFormats := map[string]bool{
		"":      true,
		"csv":   true,
		"table": true,
	}
	if !validOutputFormats[cfg.Export.Format] {
		return fmt.Errorf("invalid export.format: %s (must be 'csv' or 'table')", cfg.Export.Format)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

func validateStore(s *StoreConfig) error {
	switch s.Backend {
	case BackendMongo:
		// the connection string itself is checked when the store is opened
		if s.Mongo.Database == "" {
			return fmt.Errorf("store.mongo.database is required")
		}
	case BackendFile:
		if s.File.Path == "" {
			return fmt.Errorf("store.file.path is required")
		}
	case BackendKeyring:
		if s.Keyring.Service == "" {
			return fmt.Errorf("store.keyring.service is required")
		}
	case BackendRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required")
		}
	default:
		return fmt.Errorf("invalid store.backend: %s (must be one of mongo, file, keyring, redis)", s.Backend)
	}
	return nil
}
