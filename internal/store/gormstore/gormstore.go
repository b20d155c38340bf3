// Package gormstore persists every marketplace table through GORM. Each
// domain package gets its own store type implementing that package's Store
// interface; all of them share one *gorm.DB so a single pool serves the
// whole process.
package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/slotmarket/pkg/ledger"
)

const (
	defaultJSON           = "{}"
	defaultJSONArray      = "[]"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore    = "store"
	errorSubjectBalance    = "balance"
	errorSubjectCash       = "cash_history"
	errorSubjectKeyword    = "keyword"
	errorSubjectGroup      = "keyword_group"
	errorSubjectSlot       = "slot"
	errorSubjectPending    = "pending_balance"
	errorSubjectRefund     = "refund"
	errorSubjectGuarantee  = "guarantee_request"
	errorSubjectNegotiate  = "negotiation_message"
	errorSubjectGSlot      = "guarantee_slot"
	errorSubjectInquiry    = "inquiry"
	errorSubjectInqMessage = "inquiry_message"
	errorSubjectSettings   = "settings"

	errorCodeInsert       = "insert"
	errorCodeGet          = "get"
	errorCodeList         = "list"
	errorCodeUpdate       = "update"
	errorCodeUpdateStatus = "update_status"
	errorCodeDelete       = "delete"
	errorCodeDuplicate    = "duplicate"
	errorCodeInvalid      = "invalid"
	errorCodeSave         = "save"
)

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func datatypesJSONArray(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultJSONArray))
	}
	return datatypes.JSON([]byte(raw))
}

func unixOrZero(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}

func timePtr(unixUTC int64) *time.Time {
	if unixUTC == 0 {
		return nil
	}
	value := time.Unix(unixUTC, 0).UTC()
	return &value
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

// getBalanceForUpdate locks the balance row, creating a zero row for a user
// seen for the first time, so read-modify-write inside a transaction is
// serialized by the database.
func getBalanceForUpdate(ctx context.Context, db *gorm.DB, userID string) (ledger.Balance, error) {
	var row UserBalance
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = UserBalance{UserID: userID, UpdatedAt: time.Now().UTC()}
		createErr := db.WithContext(ctx).Create(&row).Error
		if createErr != nil && !isDuplicateError(createErr) {
			return ledger.Balance{}, wrapStoreError(errorSubjectBalance, errorCodeInsert, createErr)
		}
		err = db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&row).Error
	}
	if err != nil {
		return ledger.Balance{}, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	return ledger.Balance{FreeCents: row.FreeCents, PaidCents: row.PaidCents}, nil
}

func saveBalance(ctx context.Context, db *gorm.DB, userID string, balance ledger.Balance) error {
	if balance.FreeCents < 0 || balance.PaidCents < 0 {
		return wrapStoreError(errorSubjectBalance, errorCodeInvalid, ledger.ErrInvalidBalance)
	}
	result := db.WithContext(ctx).
		Model(&UserBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"free_cents": balance.FreeCents,
			"paid_cents": balance.PaidCents,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeSave, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBalance, errorCodeSave, gorm.ErrRecordNotFound)
	}
	return nil
}

func insertCashHistory(ctx context.Context, db *gorm.DB, entry ledger.Entry) error {
	row := UserCashHistory{
		EntryID:   entry.EntryID,
		UserID:    entry.UserID,
		Type:      entry.Type.String(),
		FreeCents: entry.FreeCents,
		PaidCents: entry.PaidCents,
		Note:      entry.Note,
		Metadata:  datatypesJSON(entry.MetadataJSON),
		CreatedAt: time.Unix(entry.CreatedUnixUTC, 0).UTC(),
	}
	if entry.CreatedUnixUTC == 0 {
		row.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectCash, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectCash, errorCodeInsert, err)
	}
	return nil
}
