// Package jobs runs the recurring background work: the refund payout sweep
// and expiry of stale guarantee negotiations.
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/refund"
)

const (
	refundSweepSpec       = "*/10 * * * *"
	negotiationExpirySpec = "*/15 * * * *"
)

// Scheduler owns the cron instance and the services it drives.
type Scheduler struct {
	cron             *cron.Cron
	refundService    *refund.Service
	guaranteeService *guarantee.Service
	logger           *zap.Logger
}

// NewScheduler wires the scheduler. Schedules run in UTC.
func NewScheduler(refundService *refund.Service, guaranteeService *guarantee.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:             cron.New(),
		refundService:    refundService,
		guaranteeService: guaranteeService,
		logger:           logger,
	}
}

// Start registers and starts the recurring jobs.
func (scheduler *Scheduler) Start(ctx context.Context) error {
	_, err := scheduler.cron.AddFunc(refundSweepSpec, func() {
		summary, _, err := scheduler.refundService.ProcessScheduled(ctx)
		if err != nil {
			scheduler.logger.Error("refund sweep",
				zap.Int("processed", summary.Processed),
				zap.Int("failed", summary.Failed),
				zap.Error(err))
			return
		}
		if summary.Processed > 0 {
			scheduler.logger.Info("refund sweep",
				zap.Int("processed", summary.Processed),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int64("total_cents", summary.TotalCents))
		}
	})
	if err != nil {
		return err
	}

	_, err = scheduler.cron.AddFunc(negotiationExpirySpec, func() {
		expired, err := scheduler.guaranteeService.ExpireStale(ctx)
		if err != nil {
			scheduler.logger.Error("negotiation expiry", zap.Error(err))
			return
		}
		if expired > 0 {
			scheduler.logger.Info("negotiation expiry", zap.Int64("expired", expired))
		}
	})
	if err != nil {
		return err
	}

	scheduler.cron.Start()
	scheduler.logger.Info("scheduler started")
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (scheduler *Scheduler) Stop() {
	ctx := scheduler.cron.Stop()
	<-ctx.Done()
	scheduler.logger.Info("scheduler stopped")
}
