// Package slot holds the slot model shared by the purchase, guarantee, and
// refund flows. A slot is one purchased unit of advertising work; it is never
// created in isolation — every insert travels with a history log row and a
// pending balance row in the same transaction.
package slot

import (
	"errors"
	"fmt"
)

// Status is the closed lifecycle set for a slot.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusPending        Status = "pending"
	StatusActive         Status = "active"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusRefundApproved Status = "refund_approved"
	StatusRefunded       Status = "refunded"
)

// ErrInvalidStatus marks a status value outside the closed set.
var ErrInvalidStatus = errors.New("invalid slot status")

// ParseStatus validates a raw status value against the closed set.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusDraft, StatusPending, StatusActive, StatusPaused, StatusCompleted,
		StatusRejected, StatusCancelled, StatusRefundApproved, StatusRefunded:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the raw status value.
func (status Status) String() string {
	return string(status)
}

// Slot is one purchased unit of work tied to a keyword or guarantee campaign.
type Slot struct {
	SlotID                string
	UserID                string
	DistributorID         string
	KeywordID             string
	Status                Status
	InputDataJSON         string
	AmountCents           int64
	IsAutoRefundCandidate bool
	IsAutoContinue        bool
	CreatedUnixUTC        int64
}

// HistoryEntry is an append-only audit row for a slot.
type HistoryEntry struct {
	SlotID         string
	UserID         string
	Action         string
	Note           string
	DetailsJSON    string
	CreatedUnixUTC int64
}

// PendingBalanceStatus tracks settlement of earmarked funds.
type PendingBalanceStatus string

const (
	PendingBalancePending  PendingBalanceStatus = "pending"
	PendingBalanceResolved PendingBalanceStatus = "resolved"
)

// PendingBalance earmarks funds committed to a slot but not yet consumed.
type PendingBalance struct {
	SlotID         string
	AmountCents    int64
	Status         PendingBalanceStatus
	CreatedUnixUTC int64
}
