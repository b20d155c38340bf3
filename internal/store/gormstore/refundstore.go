package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// RefundStore implements refund.Store.
type RefundStore struct {
	db *gorm.DB
}

// NewRefundStore returns a RefundStore backed by gorm.DB.
func NewRefundStore(db *gorm.DB) *RefundStore {
	return &RefundStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *RefundStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore refund.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &RefundStore{db: transaction})
	})
}

func (store *RefundStore) GetSlotView(ctx context.Context, slotID string) (refund.SlotView, error) {
	var row SlotRecord
	err := store.db.WithContext(ctx).
		Select("slot_id", "user_id", "distributor_id", "status").
		Where("slot_id = ?", slotID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return refund.SlotView{}, refund.ErrNotFoundOrForbidden
	}
	if err != nil {
		return refund.SlotView{}, wrapStoreError(errorSubjectSlot, errorCodeGet, err)
	}
	status, err := slot.ParseStatus(row.Status)
	if err != nil {
		return refund.SlotView{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	return refund.SlotView{
		SlotID:        row.SlotID,
		UserID:        row.UserID,
		DistributorID: row.DistributorID,
		Status:        status,
	}, nil
}

func (store *RefundStore) InsertRefund(ctx context.Context, request refund.Request) error {
	row := SlotRefundApproval{
		RefundID:      request.RefundID,
		SlotID:        request.SlotID,
		RequesterID:   request.RequesterID,
		RefundCents:   request.RefundCents,
		ApprovedCents: request.ApprovedCents,
		Status:        request.Status.String(),
		Reason:        request.Reason,
		ApprovalNotes: request.ApprovalNotes,
		RequestedAt:   time.Unix(request.RequestUnixUTC, 0).UTC(),
		ApprovalAt:    timePtr(request.ApprovalUnixUTC),
		PaidOutAt:     timePtr(request.PaidOutUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectRefund, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectRefund, errorCodeInsert, err)
	}
	return nil
}

func (store *RefundStore) GetRefund(ctx context.Context, refundID string) (refund.Request, error) {
	return store.getRefund(ctx, refundID, false)
}

func (store *RefundStore) GetRefundForUpdate(ctx context.Context, refundID string) (refund.Request, error) {
	return store.getRefund(ctx, refundID, true)
}

func (store *RefundStore) getRefund(ctx context.Context, refundID string, forUpdate bool) (refund.Request, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row SlotRefundApproval
	err := query.Where("refund_id = ?", refundID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return refund.Request{}, refund.ErrNotFoundOrForbidden
	}
	if err != nil {
		return refund.Request{}, wrapStoreError(errorSubjectRefund, errorCodeGet, err)
	}
	status, err := refund.ParseStatus(row.Status)
	if err != nil {
		return refund.Request{}, wrapStoreError(errorSubjectRefund, errorCodeInvalid, err)
	}
	return refund.Request{
		RefundID:        row.RefundID,
		SlotID:          row.SlotID,
		RequesterID:     row.RequesterID,
		RefundCents:     row.RefundCents,
		ApprovedCents:   row.ApprovedCents,
		Status:          status,
		Reason:          row.Reason,
		ApprovalNotes:   row.ApprovalNotes,
		RequestUnixUTC:  row.RequestedAt.Unix(),
		ApprovalUnixUTC: unixOrZero(row.ApprovalAt),
		PaidOutUnixUTC:  unixOrZero(row.PaidOutAt),
	}, nil
}

func (store *RefundStore) SetRefundDecision(ctx context.Context, refundID string, status refund.Status, approvedCents int64, notes string, approvalUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&SlotRefundApproval{}).
		Where("refund_id = ?", refundID).
		Updates(map[string]any{
			"status":         status.String(),
			"approved_cents": approvedCents,
			"approval_notes": notes,
			"approval_at":    timePtr(approvalUnixUTC),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return refund.ErrNotFoundOrForbidden
	}
	return nil
}

func (store *RefundStore) MarkRefundPaidOut(ctx context.Context, refundID string, paidOutUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&SlotRefundApproval{}).
		Where("refund_id = ? AND status = ?", refundID, refund.StatusApproved.String()).
		Updates(map[string]any{
			"status":      refund.StatusPaidOut.String(),
			"paid_out_at": timePtr(paidOutUnixUTC),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdateStatus, refund.ErrInvalidTransition)
	}
	return nil
}

func (store *RefundStore) ListDueRefundIDs(ctx context.Context, approvedBeforeUnixUTC int64) ([]string, error) {
	cutoff := time.Unix(approvedBeforeUnixUTC, 0).UTC()
	var refundIDs []string
	err := store.db.WithContext(ctx).
		Model(&SlotRefundApproval{}).
		Where("status = ? AND approval_at IS NOT NULL AND approval_at <= ?", refund.StatusApproved.String(), cutoff).
		Order("approval_at ASC").
		Pluck("refund_id", &refundIDs).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRefund, errorCodeList, err)
	}
	return refundIDs, nil
}

func (store *RefundStore) UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error {
	return updateSlotStatus(ctx, store.db, slotID, from, to, refund.ErrInvalidTransition)
}

func (store *RefundStore) ResolvePendingBalance(ctx context.Context, slotID string) error {
	result := store.db.WithContext(ctx).
		Model(&SlotPendingBalance{}).
		Where("slot_id = ?", slotID).
		Updates(map[string]any{
			"status":     string(slot.PendingBalanceResolved),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectPending, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *RefundStore) GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error) {
	return getBalanceForUpdate(ctx, store.db, userID)
}

func (store *RefundStore) SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error {
	return saveBalance(ctx, store.db, userID, balance)
}

func (store *RefundStore) InsertCashHistory(ctx context.Context, entry ledger.Entry) error {
	return insertCashHistory(ctx, store.db, entry)
}
