package guarantee

import (
	"context"
	"fmt"

	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// RequestStatus is the negotiation lifecycle of a guarantee campaign request.
type RequestStatus string

const (
	RequestRequested   RequestStatus = "requested"
	RequestNegotiating RequestStatus = "negotiating"
	RequestAccepted    RequestStatus = "accepted"
	RequestRejected    RequestStatus = "rejected"
	RequestExpired     RequestStatus = "expired"
	RequestPurchased   RequestStatus = "purchased"
)

// ParseRequestStatus validates a raw request status value.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch RequestStatus(raw) {
	case RequestRequested, RequestNegotiating, RequestAccepted, RequestRejected, RequestExpired, RequestPurchased:
		return RequestStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the raw status value.
func (status RequestStatus) String() string {
	return string(status)
}

// SlotStatus is the lifecycle of a guarantee slot created from an accepted
// request.
type SlotStatus string

const (
	SlotPending   SlotStatus = "pending"
	SlotActive    SlotStatus = "active"
	SlotCompleted SlotStatus = "completed"
	SlotCancelled SlotStatus = "cancelled"
	SlotRejected  SlotStatus = "rejected"
)

// ParseSlotStatus validates a raw guarantee slot status value.
func ParseSlotStatus(raw string) (SlotStatus, error) {
	switch SlotStatus(raw) {
	case SlotPending, SlotActive, SlotCompleted, SlotCancelled, SlotRejected:
		return SlotStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the raw status value.
func (status SlotStatus) String() string {
	return string(status)
}

// Request is a guarantee campaign negotiation between an advertiser and the
// assigned distributor.
type Request struct {
	RequestID          string
	CampaignID         string
	UserID             string
	DistributorID      string
	KeywordID          string
	TargetRank         int
	GuaranteeCount     int
	InitialBudgetCents int64
	FinalDailyCents    int64
	FinalTotalCents    int64
	Status             RequestStatus
	InputDataJSON      string
	StartDateUnixUTC   int64
	EndDateUnixUTC     int64
	ExpiresAtUnixUTC   int64
	CreatedUnixUTC     int64
}

// RequestInput carries the fields an advertiser supplies when opening a
// negotiation.
type RequestInput struct {
	CampaignID         string
	DistributorID      string
	KeywordID          string
	TargetRank         int
	GuaranteeCount     int
	InitialBudgetCents int64
	StartDateUnixUTC   int64
	EndDateUnixUTC     int64
	ExpiresAtUnixUTC   int64
}

// Message is one offer or counter-offer in a negotiation thread.
type Message struct {
	MessageID          string
	RequestID          string
	SenderID           string
	SenderRole         string
	Content            string
	ProposedDailyCents int64
	ProposedTotalCents int64
	CreatedUnixUTC     int64
}

// Slot is the guarantee slot sub-resource of a purchased request. SlotID
// links to the regular slot row created by the purchase so refunds and
// inquiries attach uniformly.
type Slot struct {
	GuaranteeSlotID  string
	RequestID        string
	SlotID           string
	Status           SlotStatus
	ApprovedAtUnix   int64
	ApprovedBy       string
	RejectedAtUnix   int64
	RejectedBy       string
	RejectionReason  string
	StartDateUnixUTC int64
	EndDateUnixUTC   int64
	CreatedUnixUTC   int64
}

// PurchaseResult reports what purchasing an accepted request produced.
type PurchaseResult struct {
	SlotID          string
	GuaranteeSlotID string
	TotalCents      int64
	FreeUsedCents   int64
	PaidUsedCents   int64
	Balance         ledger.Balance
}

// Store is the persistence contract used by Service. Status updates are
// compare-and-set: a transition whose from-status no longer matches must
// return ErrInvalidTransition so concurrent actors cannot double-drive the
// state machine.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	InsertRequest(ctx context.Context, request Request) error
	GetRequest(ctx context.Context, requestID string) (Request, error)
	GetRequestForUpdate(ctx context.Context, requestID string) (Request, error)
	UpdateRequestStatus(ctx context.Context, requestID string, from, to RequestStatus) error
	SetRequestFinalAmounts(ctx context.Context, requestID string, dailyCents, totalCents int64) error
	ListRequests(ctx context.Context, userID string, distributorID string) ([]Request, error)
	ExpireRequests(ctx context.Context, nowUnixUTC int64) (int64, error)

	InsertMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context, requestID string) ([]Message, error)

	InsertGuaranteeSlot(ctx context.Context, record Slot) error
	GetGuaranteeSlotForUpdate(ctx context.Context, guaranteeSlotID string) (Slot, error)
	ApproveGuaranteeSlot(ctx context.Context, guaranteeSlotID string, approverID string, nowUnixUTC int64) error
	RejectGuaranteeSlot(ctx context.Context, guaranteeSlotID string, rejecterID string, reason string, nowUnixUTC int64) error
	UpdateGuaranteeSlotStatus(ctx context.Context, guaranteeSlotID string, from, to SlotStatus) error

	GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error)
	SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error
	InsertCashHistory(ctx context.Context, entry ledger.Entry) error
	InsertSlotRecord(ctx context.Context, record slot.Slot) error
	InsertSlotHistory(ctx context.Context, entry slot.HistoryEntry) error
	InsertPendingBalance(ctx context.Context, pending slot.PendingBalance) error
	UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error
}
