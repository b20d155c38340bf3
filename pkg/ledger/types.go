package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// UserID identifies a balance owner.
type UserID struct {
	value string
}

// PositiveAmountCents is a strictly positive integer currency in cents.
type PositiveAmountCents int64

// MetadataJSON stores arbitrary entry metadata.
type MetadataJSON struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewPositiveAmountCents validates an amount and ensures it is strictly positive.
func NewPositiveAmountCents(raw int64) (PositiveAmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return PositiveAmountCents(raw), nil
}

// Int64 returns the raw cent value.
func (amount PositiveAmountCents) Int64() int64 {
	return int64(amount)
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// EntryType enumerates cash history entry kinds.
type EntryType string

const (
	EntryCharge           EntryType = "charge"
	EntryPurchase         EntryType = "purchase"
	EntryRefund           EntryType = "refund"
	EntryRefundDifference EntryType = "refund_difference"
	EntryBonus            EntryType = "bonus"
	EntryDeduction        EntryType = "deduction"
)

// ParseEntryType validates a raw entry type value.
func ParseEntryType(raw string) (EntryType, error) {
	switch EntryType(raw) {
	case EntryCharge, EntryPurchase, EntryRefund, EntryRefundDifference, EntryBonus, EntryDeduction:
		return EntryType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, raw)
}

// String returns the raw entry type value.
func (entryType EntryType) String() string {
	return string(entryType)
}

// Balance is the two-pool cash position of a user. Free cash is promotional
// and is always consumed before paid cash. Both pools are never negative.
type Balance struct {
	FreeCents int64
	PaidCents int64
}

// TotalCents returns the combined spendable amount.
func (balance Balance) TotalCents() int64 {
	return balance.FreeCents + balance.PaidCents
}

// DebitSplit reports how a debit was taken from the two pools.
type DebitSplit struct {
	FreeCents int64
	PaidCents int64
}

// Entry is a single immutable line in the cash history. FreeCents and
// PaidCents are signed deltas; their sum matches the balance change the entry
// records.
type Entry struct {
	EntryID        string
	UserID         string
	Type           EntryType
	FreeCents      int64
	PaidCents      int64
	Note           string
	MetadataJSON   string
	CreatedUnixUTC int64
}

// Store is the persistence contract used by Service. GetBalanceForUpdate must
// lock the row (or create a zero row) so the read-modify-write inside WithTx
// is serialized by the storage layer.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetBalanceForUpdate(ctx context.Context, userID string) (Balance, error)
	SaveBalance(ctx context.Context, userID string, balance Balance) error
	InsertEntry(ctx context.Context, entry Entry) error
	ListEntries(ctx context.Context, userID string, beforeUnixUTC int64, limit int) ([]Entry, error)
}
