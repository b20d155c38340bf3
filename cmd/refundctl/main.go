// Command refundctl runs the refund payout sweep once, outside the daemon's
// schedule. The simulate subcommand reports what a sweep would pay without
// writing anything, which is how operators sanity-check a backlog before
// letting it drain.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/store/gormstore"
)

const (
	flagDatabaseURL      = "database-url"
	configKeyDatabaseURL = "database_url"
	defaultDatabaseURL   = "sqlite:///tmp/slotmarket.db"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "refundctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "refundctl",
		Short:         "Refund payout sweep operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")

	cmd.AddCommand(&cobra.Command{
		Use:   "process",
		Short: "Pay out every refund whose delay has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "simulate",
		Short: "Report what a sweep would pay without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, true)
		},
	})

	return cmd
}

func runSweep(cmd *cobra.Command, dryRun bool) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv(configKeyDatabaseURL, "DATABASE_URL"); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyDatabaseURL, cmd.Flags().Lookup(flagDatabaseURL)); err != nil {
		return err
	}
	dsn := viper.GetString(configKeyDatabaseURL)
	if dsn == "" {
		dsn = defaultDatabaseURL
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	gormDB, cleanup, err := openDatabase(ctx, dsn)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	clock := func() int64 { return time.Now().UTC().Unix() }
	refundService, err := refund.NewService(gormstore.NewRefundStore(gormDB), clock, uuid.NewString)
	if err != nil {
		return fmt.Errorf("refund service init: %w", err)
	}

	var (
		summary    refund.SweepSummary
		changesets []refund.Changeset
		sweepErr   error
	)
	if dryRun {
		summary, changesets, sweepErr = refundService.Simulate(ctx)
	} else {
		summary, changesets, sweepErr = refundService.ProcessScheduled(ctx)
	}

	for _, changeset := range changesets {
		logger.Info("refund payout",
			zap.Bool("dry_run", dryRun),
			zap.String("refund_id", changeset.RefundID),
			zap.String("slot_id", changeset.SlotID),
			zap.String("requester_id", changeset.RequesterID),
			zap.Int64("requester_cents", changeset.RequesterCreditCents),
			zap.String("distributor_id", changeset.DistributorID),
			zap.Int64("distributor_cents", changeset.DistributorCreditCents))
	}
	logger.Info("sweep finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int64("total_cents", summary.TotalCents))

	return sweepErr
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	var db *gorm.DB
	var err error
	gormCfg := &gorm.Config{}
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		sqlitePath, pathErr := resolveSQLitePath(dsn)
		if pathErr != nil {
			return nil, nil, pathErr
		}
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveSQLitePath(dsn string) (string, error) {
	path := dsn
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path = u.Path
		if path == "" {
			path = u.Host
		}
	}
	if path == "" || path == "/" {
		path = "slotmarket.db"
	}
	if path == ":memory:" {
		return path, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
