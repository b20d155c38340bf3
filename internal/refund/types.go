package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// Domain-level error values returned by the refund service.
var (
	ErrNotFoundOrForbidden   = errors.New("refund not found or not owned by caller")
	ErrInvalidStatus         = errors.New("invalid refund status")
	ErrInvalidTransition     = errors.New("invalid refund transition")
	ErrInvalidRefund         = errors.New("invalid refund request")
	ErrApprovedExceedsAsked  = errors.New("approved amount exceeds requested amount")
	ErrSlotNotRefundable     = errors.New("slot is not refundable")
	ErrNoDistributorForSplit = errors.New("partial approval without a distributor to credit")
	ErrInvalidServiceConfig  = errors.New("invalid service config")
)

// Status is the lifecycle of a refund request.
type Status string

const (
	StatusPending             Status = "pending"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusPendingConfirmation Status = "pending_user_confirmation"
	StatusPaidOut             Status = "paid_out"
)

// ParseStatus validates a raw refund status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusRejected, StatusPendingConfirmation, StatusPaidOut:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the raw status value.
func (status Status) String() string {
	return string(status)
}

// Request is one refund attached to an active slot. ApprovedCents is zero
// until a distributor decision and never exceeds RefundCents.
type Request struct {
	RefundID        string
	SlotID          string
	RequesterID     string
	RefundCents     int64
	ApprovedCents   int64
	Status          Status
	Reason          string
	ApprovalNotes   string
	RequestUnixUTC  int64
	ApprovalUnixUTC int64
	PaidOutUnixUTC  int64
}

// Changeset is the full set of writes one refund payout would perform. The
// processor computes it first and applies it second, so the simulate path
// shares the computation and stops before the apply step.
type Changeset struct {
	RefundID               string
	SlotID                 string
	RequesterID            string
	DistributorID          string
	RequesterCreditCents   int64
	DistributorCreditCents int64
}

// SweepSummary reports one sweep over due refunds.
type SweepSummary struct {
	Processed  int
	Succeeded  int
	Failed     int
	TotalCents int64
}

// SlotView is the slot state the refund flow needs.
type SlotView struct {
	SlotID        string
	UserID        string
	DistributorID string
	Status        slot.Status
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetSlotView(ctx context.Context, slotID string) (SlotView, error)
	InsertRefund(ctx context.Context, request Request) error
	GetRefund(ctx context.Context, refundID string) (Request, error)
	GetRefundForUpdate(ctx context.Context, refundID string) (Request, error)
	SetRefundDecision(ctx context.Context, refundID string, status Status, approvedCents int64, notes string, approvalUnixUTC int64) error
	MarkRefundPaidOut(ctx context.Context, refundID string, paidOutUnixUTC int64) error
	ListDueRefundIDs(ctx context.Context, approvedBeforeUnixUTC int64) ([]string, error)

	UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error
	ResolvePendingBalance(ctx context.Context, slotID string) error

	GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error)
	SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error
	InsertCashHistory(ctx context.Context, entry ledger.Entry) error
}

// Notifier receives a callback after a refund payout committed.
type Notifier interface {
	RefundProcessed(ctx context.Context, changeset Changeset)
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithNotifier wires a post-commit notifier.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithPayoutDelaySeconds overrides the approval-to-payout delay.
func WithPayoutDelaySeconds(seconds int64) ServiceOption {
	return func(service *Service) {
		if seconds > 0 {
			service.payoutDelaySeconds = seconds
		}
	}
}
