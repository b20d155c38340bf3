package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/adforge/slotmarket/internal/events"
	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/httpserver"
	"github.com/adforge/slotmarket/internal/inquiry"
	"github.com/adforge/slotmarket/internal/jobs"
	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/purchase"
	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/settings"
	"github.com/adforge/slotmarket/internal/store/gormstore"
	"github.com/adforge/slotmarket/pkg/ledger"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagBrokerURL        = "broker-url"
	flagJWTSigningKey    = "jwt-signing-key"
	flagJWTIssuer        = "jwt-issuer"
	flagAllowedOrigins   = "allowed-origins"
	flagPayoutDelay      = "payout-delay-seconds"
	configKeyDatabaseURL = "database_url"
	configKeyListenAddr  = "listen_addr"
	configKeyBrokerURL   = "broker_url"
	configKeySigningKey  = "jwt_signing_key"
	configKeyIssuer      = "jwt_issuer"
	configKeyOrigins     = "allowed_origins"
	configKeyPayoutDelay = "payout_delay_seconds"
	defaultDatabaseURL   = "sqlite:///tmp/slotmarket.db"
	defaultListenAddr    = ":8080"
	defaultJWTIssuer     = "slotmarket"
)

type runtimeConfig struct {
	DatabaseURL        string
	ListenAddr         string
	BrokerURL          string
	JWTSigningKey      string
	JWTIssuer          string
	AllowedOrigins     []string
	PayoutDelaySeconds int64
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slotmarketd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "slotmarketd",
		Short:         "Keyword slot marketplace HTTP server",
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

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagBrokerURL, "", "AMQP broker URL for domain events (optional)")
	cmd.Flags().String(flagJWTSigningKey, "", "HMAC key for verifying bearer tokens")
	cmd.Flags().String(flagJWTIssuer, defaultJWTIssuer, "expected JWT issuer")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")
	cmd.Flags().Int64(flagPayoutDelay, 0, "override the refund payout delay in seconds")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "LISTEN_ADDR",
		configKeyBrokerURL:   "BROKER_URL",
		configKeySigningKey:  "JWT_SIGNING_KEY",
		configKeyIssuer:      "JWT_ISSUER",
		configKeyOrigins:     "ALLOWED_ORIGINS",
		configKeyPayoutDelay: "PAYOUT_DELAY_SECONDS",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeyBrokerURL:   flagBrokerURL,
		configKeySigningKey:  flagJWTSigningKey,
		configKeyIssuer:      flagJWTIssuer,
		configKeyOrigins:     flagAllowedOrigins,
		configKeyPayoutDelay: flagPayoutDelay,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.BrokerURL = viper.GetString(configKeyBrokerURL)
	cfg.JWTSigningKey = viper.GetString(configKeySigningKey)
	cfg.JWTIssuer = viper.GetString(configKeyIssuer)
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyOrigins)
	cfg.PayoutDelaySeconds = viper.GetInt64(configKeyPayoutDelay)

	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.BrokerURL, logger)
	if err != nil {
		return fmt.Errorf("event publisher init: %w", err)
	}
	defer publisher.Close()

	services, refundService, guaranteeService, err := buildServices(gormDB, cfg, logger, publisher)
	if err != nil {
		return err
	}

	scheduler := jobs.NewScheduler(refundService, guaranteeService, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	defer scheduler.Stop()

	return httpserver.Run(ctx, httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSigningKey:  cfg.JWTSigningKey,
		JWTIssuer:      cfg.JWTIssuer,
	}, services, logger)
}

func buildServices(gormDB *gorm.DB, cfg *runtimeConfig, logger *zap.Logger, publisher *events.Publisher) (httpserver.Services, *refund.Service, *guarantee.Service, error) {
	clock := func() int64 { return time.Now().UTC().Unix() }
	newID := uuid.NewString

	ledgerService, err := ledger.NewService(gormstore.NewLedgerStore(gormDB), clock,
		ledger.WithOperationLogger(zapOperationLogger{logger: logger}))
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("ledger service init: %w", err)
	}
	keywordService, err := keyword.NewService(gormstore.NewKeywordStore(gormDB), clock, newID)
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("keyword service init: %w", err)
	}
	purchaseService, err := purchase.NewService(gormstore.NewPurchaseStore(gormDB), clock, newID,
		purchase.WithNotifier(publisher))
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("purchase service init: %w", err)
	}
	guaranteeService, err := guarantee.NewService(gormstore.NewGuaranteeStore(gormDB), clock, newID)
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("guarantee service init: %w", err)
	}
	refundOptions := []refund.ServiceOption{refund.WithNotifier(publisher)}
	if cfg.PayoutDelaySeconds > 0 {
		refundOptions = append(refundOptions, refund.WithPayoutDelaySeconds(cfg.PayoutDelaySeconds))
	}
	refundService, err := refund.NewService(gormstore.NewRefundStore(gormDB), clock, newID, refundOptions...)
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("refund service init: %w", err)
	}
	inquiryService, err := inquiry.NewService(gormstore.NewInquiryStore(gormDB), clock, newID)
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("inquiry service init: %w", err)
	}
	settingsService, err := settings.NewService(gormstore.NewSettingsStore(gormDB), clock)
	if err != nil {
		return httpserver.Services{}, nil, nil, fmt.Errorf("settings service init: %w", err)
	}

	services := httpserver.Services{
		Ledger:     ledgerService,
		Keywords:   keywordService,
		Purchases:  purchaseService,
		Guarantees: guaranteeService,
		Refunds:    refundService,
		Inquiries:  inquiryService,
		Settings:   settingsService,
	}
	return services, refundService, guaranteeService, nil
}

type zapOperationLogger struct {
	logger *zap.Logger
}

func (adapter zapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.String("entry_type", string(entry.EntryType)),
		zap.Int64("free_cents", entry.FreeCents),
		zap.Int64("paid_cents", entry.PaidCents),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("ledger operation", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "slotmarket.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
