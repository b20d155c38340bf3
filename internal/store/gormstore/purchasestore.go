package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/purchase"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// PurchaseStore implements purchase.Store.
type PurchaseStore struct {
	db *gorm.DB
}

// NewPurchaseStore returns a PurchaseStore backed by gorm.DB.
func NewPurchaseStore(db *gorm.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *PurchaseStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore purchase.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &PurchaseStore{db: transaction})
	})
}

// GetOwnedKeywords returns only the requested keywords whose group belongs to
// userID; a shorter result than the request signals a foreign or unknown id.
func (store *PurchaseStore) GetOwnedKeywords(ctx context.Context, userID string, keywordIDs []string) ([]keyword.Keyword, error) {
	var rows []KeywordRecord
	err := store.db.WithContext(ctx).
		Joins("JOIN keyword_groups ON keyword_groups.group_id = keywords.group_id").
		Where("keywords.keyword_id IN ? AND keyword_groups.user_id = ?", keywordIDs, userID).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectKeyword, errorCodeList, err)
	}
	records := make([]keyword.Keyword, 0, len(rows))
	for _, row := range rows {
		record, err := keywordFromRow(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectKeyword, errorCodeInvalid, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (store *PurchaseStore) GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error) {
	return getBalanceForUpdate(ctx, store.db, userID)
}

func (store *PurchaseStore) SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error {
	return saveBalance(ctx, store.db, userID, balance)
}

func (store *PurchaseStore) InsertCashHistory(ctx context.Context, entry ledger.Entry) error {
	return insertCashHistory(ctx, store.db, entry)
}

func (store *PurchaseStore) InsertSlot(ctx context.Context, record slot.Slot) error {
	return insertSlotRecord(ctx, store.db, record)
}

func (store *PurchaseStore) InsertSlotHistory(ctx context.Context, entry slot.HistoryEntry) error {
	return insertSlotHistory(ctx, store.db, entry)
}

func (store *PurchaseStore) InsertPendingBalance(ctx context.Context, pending slot.PendingBalance) error {
	return insertPendingBalance(ctx, store.db, pending)
}

func (store *PurchaseStore) GetSlotForUpdate(ctx context.Context, slotID string) (slot.Slot, error) {
	var row SlotRecord
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("slot_id = ?", slotID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return slot.Slot{}, purchase.ErrNotFoundOrForbidden
	}
	if err != nil {
		return slot.Slot{}, wrapStoreError(errorSubjectSlot, errorCodeGet, err)
	}
	status, err := slot.ParseStatus(row.Status)
	if err != nil {
		return slot.Slot{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	return slot.Slot{
		SlotID:                row.SlotID,
		UserID:                row.UserID,
		DistributorID:         row.DistributorID,
		KeywordID:             row.KeywordID,
		Status:                status,
		InputDataJSON:         string(row.InputData),
		AmountCents:           row.AmountCents,
		IsAutoRefundCandidate: row.IsAutoRefundCandidate,
		IsAutoContinue:        row.IsAutoContinue,
		CreatedUnixUTC:        row.CreatedAt.Unix(),
	}, nil
}

func (store *PurchaseStore) UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error {
	return updateSlotStatus(ctx, store.db, slotID, from, to, purchase.ErrInvalidTransition)
}
