package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adforge/slotmarket/pkg/ledger"
)

// LedgerStore implements ledger.Store.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore returns a LedgerStore backed by gorm.DB.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

func (store *LedgerStore) GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error) {
	return getBalanceForUpdate(ctx, store.db, userID)
}

func (store *LedgerStore) SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error {
	return saveBalance(ctx, store.db, userID, balance)
}

func (store *LedgerStore) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	return insertCashHistory(ctx, store.db, entry)
}

func (store *LedgerStore) ListEntries(ctx context.Context, userID string, beforeUnixUTC int64, limit int) ([]ledger.Entry, error) {
	before := time.Unix(beforeUnixUTC, 0).UTC()
	if beforeUnixUTC == 0 {
		before = time.Now().UTC().Add(time.Second)
	}

	var rows []UserCashHistory
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND created_at < ?", userID, before).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCash, errorCodeList, err)
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entryType, err := ledger.ParseEntryType(row.Type)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCash, errorCodeInvalid, err)
		}
		entries = append(entries, ledger.Entry{
			EntryID:        row.EntryID,
			UserID:         row.UserID,
			Type:           entryType,
			FreeCents:      row.FreeCents,
			PaidCents:      row.PaidCents,
			Note:           row.Note,
			MetadataJSON:   string(row.Metadata),
			CreatedUnixUTC: row.CreatedAt.Unix(),
		})
	}
	return entries, nil
}
