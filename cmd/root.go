package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/s0up4200/fortnox-client/config"
	"github.com/s0up4200/fortnox-client/credentials"
	"github.com/s0up4200/fortnox-client/fortnox"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger

	client   *fortnox.Client
	mongoDB  *mongo.Database
	mongoCli *mongo.Client
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fortnox",
	Short: "A client for the Fortnox accounting API",
	Long: `fortnox talks to the Fortnox REST API on behalf of a single company.
It keeps OAuth tokens fresh in a credential store, paces requests below the
Fortnox rate limit and exports invoices joined with local orders.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: shutdownApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(invoiceCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)
}

// initializeApp loads the configuration and sets up logging. Commands that
// talk to Fortnox call connect themselves.
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	return nil
}

// shutdownApp releases the credential store and database connections
func shutdownApp(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if client != nil {
		if err := client.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to close credential store")
		}
		client = nil
		if cfg.Store.Backend == config.BackendMongo {
			mongoCli, mongoDB = nil, nil
		}
	}
	if mongoCli != nil {
		if err := mongoCli.Disconnect(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
		}
		mongoCli, mongoDB = nil, nil
	}
	return nil
}

// connect builds the Fortnox client on top of the configured credential store
func connect(ctx context.Context) (*fortnox.Client, error) {
	if client != nil {
		return client, nil
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	c, err := fortnox.NewClient(store, logger,
		fortnox.WithAPIURL(cfg.Fortnox.APIURL),
		fortnox.WithTokenURL(cfg.Fortnox.TokenURL),
		fortnox.WithProvider(cfg.Fortnox.Provider),
		fortnox.WithTimeout(cfg.Fortnox.Timeout),
		fortnox.WithRateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		fortnox.WithDegradedRefresh(cfg.Auth.DegradeOnRefreshFailure),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Fortnox client: %w", err)
	}

	logger.Debug().
		Str("store", cfg.Store.Backend).
		Int("rate_limit", cfg.RateLimit.Requests).
		Dur("rate_window", cfg.RateLimit.Window).
		Msg("Fortnox client ready")

	client = c
	return client, nil
}

// openStore selects the credential store backend
func openStore(ctx context.Context) (credentials.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMongo:
		db, err := openMongo(ctx)
		if err != nil {
			return nil, err
		}
		// closing the store disconnects the shared client
		return credentials.NewMongoStore(ctx, db, cfg.Store.Mongo.Collection)
	case config.BackendFile:
		return credentials.NewFileStore(cfg.Store.File.Path)
	case config.BackendKeyring:
		return credentials.NewKeyringStore(cfg.Store.Keyring.Service), nil
	case config.BackendRedis:
		return credentials.NewRedisStore(ctx, credentials.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.KeyPrefix,
		})
	}
	return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
}

// openMongo connects once and shares the database between the credential
// store and the order lookup
func openMongo(ctx context.Context) (*mongo.Database, error) {
	if mongoDB != nil {
		return mongoDB, nil
	}

	mc, db, err := credentials.OpenMongo(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database, cfg.Store.Mongo.Timeout)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("database", db.Name()).Msg("Connected to MongoDB")

	mongoCli, mongoDB = mc, db
	return mongoDB, nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
