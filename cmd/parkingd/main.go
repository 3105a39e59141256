package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/parking/internal/database"
	"github.com/MarkoPoloResearchLab/parking/internal/httpapi"
	"github.com/MarkoPoloResearchLab/parking/internal/notify"
	"github.com/MarkoPoloResearchLab/parking/internal/oplog"
	"github.com/MarkoPoloResearchLab/parking/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/parking/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagDatabaseURL       = "database-url"
	flagStoreDriver       = "store-driver"
	flagListenAddr        = "listen-addr"
	flagAllowedOrigins    = "allowed-origins"
	flagJWTSigningKey     = "jwt-signing-key"
	flagJWTIssuer         = "jwt-issuer"
	flagJWTCookieName     = "jwt-cookie-name"
	flagRequestTimeout    = "request-timeout"
	flagAMQPURL           = "amqp-url"
	flagRedisURL          = "redis-url"
	flagRateLimitCapacity = "rate-limit-capacity"
	flagRateLimitRefill   = "rate-limit-refill"
	flagRateLimitInterval = "rate-limit-interval"
	flagConflictRetries   = "conflict-retries"
	envPrefix             = "PARKINGD"

	storeDriverGorm    = "gorm"
	storeDriverPgx     = "pgx"
	defaultDatabaseURL = "sqlite://parking.db"
	dispatcherDrain    = 10 * time.Second
)

type runtimeConfig struct {
	DatabaseURL     string
	StoreDriver     string
	AMQPURL         string
	RedisURL        string
	ConflictRetries int
	API             httpapi.Config
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "parkingd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "parkingd",
		Short:         "Parking session admission and billing API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database URL (postgres://, mysql://, sqlite:// or a SQLite path)")
	cmd.Flags().String(flagStoreDriver, storeDriverGorm, "store implementation: gorm or pgx (pgx requires postgres)")
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "TAuth JWT signing key (required)")
	cmd.Flags().String(flagJWTIssuer, "", "expected JWT issuer")
	cmd.Flags().String(flagJWTCookieName, "", "JWT cookie name")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per-request timeout (e.g. 5s)")
	cmd.Flags().String(flagAMQPURL, "", "RabbitMQ URL for receipts; empty logs receipts instead")
	cmd.Flags().String(flagRedisURL, "", "Redis URL for rate limiting; empty disables rate limiting")
	cmd.Flags().Int(flagRateLimitCapacity, 0, "session creations allowed per burst")
	cmd.Flags().Int(flagRateLimitRefill, 0, "tokens added per refill interval")
	cmd.Flags().Duration(flagRateLimitInterval, 0, "rate limit refill interval")
	cmd.Flags().Int(flagConflictRetries, parking.DefaultConflictRetries, "extra attempts for transactions that hit a write conflict")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{
		flagDatabaseURL, flagStoreDriver, flagListenAddr, flagAllowedOrigins, flagJWTSigningKey, flagJWTIssuer,
		flagJWTCookieName, flagRequestTimeout, flagAMQPURL, flagRedisURL, flagRateLimitCapacity, flagRateLimitRefill,
		flagRateLimitInterval, flagConflictRetries,
	} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	if !v.IsSet(flagJWTSigningKey) {
		return fmt.Errorf("%s is required", flagJWTSigningKey)
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(v.GetString(flagStoreDriver)))
	cfg.AMQPURL = strings.TrimSpace(v.GetString(flagAMQPURL))
	cfg.RedisURL = strings.TrimSpace(v.GetString(flagRedisURL))
	cfg.ConflictRetries = v.GetInt(flagConflictRetries)
	cfg.API = httpapi.Config{
		ListenAddr:        strings.TrimSpace(v.GetString(flagListenAddr)),
		AllowedOrigins:    httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		SessionSigningKey: v.GetString(flagJWTSigningKey),
		SessionIssuer:     strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName: strings.TrimSpace(v.GetString(flagJWTCookieName)),
		RequestTimeout:    v.GetDuration(flagRequestTimeout),
		RateLimit: httpapi.RateLimitConfig{
			Capacity:       v.GetInt(flagRateLimitCapacity),
			RefillTokens:   v.GetInt(flagRateLimitRefill),
			RefillInterval: v.GetDuration(flagRateLimitInterval),
		},
	}

	switch cfg.StoreDriver {
	case storeDriverGorm:
	case storeDriverPgx:
		target, err := database.Resolve(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if target.Driver != database.DriverPostgres {
			return fmt.Errorf("%s %q requires a postgres database url", flagStoreDriver, storeDriverPgx)
		}
	default:
		return fmt.Errorf("unsupported %s %q", flagStoreDriver, cfg.StoreDriver)
	}
	if cfg.ConflictRetries < 0 {
		return fmt.Errorf("%s must not be negative", flagConflictRetries)
	}
	return cfg.API.Validate()
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer closeStore()

	sink, closeSink, err := openReceiptSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()
	dispatcher := notify.NewDispatcher(sink, logger, notify.DefaultQueueSize)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), dispatcherDrain)
		defer cancel()
		if drainErr := dispatcher.Close(drainCtx); drainErr != nil {
			logger.Warn("receipt queue not drained", zap.Error(drainErr))
		}
	}()

	clock := func() time.Time { return time.Now().UTC() }
	service, err := parking.NewService(store, clock,
		parking.WithOperationLogger(oplog.New(logger)),
		parking.WithReceiptNotifier(dispatcher),
		parking.WithConflictRetries(cfg.ConflictRetries),
	)
	if err != nil {
		return fmt.Errorf("parking service init: %w", err)
	}

	bucket, closeBucket, err := openRateLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBucket()

	logger.Info("parkingd starting",
		zap.String("store_driver", cfg.StoreDriver),
		zap.Bool("amqp_receipts", cfg.AMQPURL != ""),
		zap.Bool("rate_limit", bucket != nil),
	)
	return httpapi.Run(ctx, cfg.API, service, bucket, logger)
}

// openStore migrates the schema through GORM and returns the configured store.
func openStore(ctx context.Context, cfg *runtimeConfig) (parking.Store, func(), error) {
	connection, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver != storeDriverPgx {
		return gormstore.New(connection.DB), func() { _ = connection.Close() }, nil
	}
	if err := connection.Close(); err != nil {
		return nil, nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgx ping: %w", err)
	}
	return pgstore.New(pool), pool.Close, nil
}

func openReceiptSink(cfg *runtimeConfig, logger *zap.Logger) (notify.Sink, func(), error) {
	if cfg.AMQPURL == "" {
		return notify.NewLogSink(logger), func() {}, nil
	}
	sink, err := notify.DialAMQPSink(cfg.AMQPURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() {
		if closeErr := sink.Close(); closeErr != nil {
			logger.Warn("rabbitmq close", zap.Error(closeErr))
		}
	}, nil
}

func openRateLimiter(ctx context.Context, cfg *runtimeConfig) (httpapi.TokenBucket, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return httpapi.NewRedisTokenBucket(client, cfg.API.RateLimit), func() { _ = client.Close() }, nil
}
