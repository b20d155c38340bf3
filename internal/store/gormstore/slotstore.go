package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/adforge/slotmarket/internal/slot"
)

// Shared slot writes used by the purchase, guarantee, and refund stores.

func insertSlotRecord(ctx context.Context, db *gorm.DB, record slot.Slot) error {
	createdAt := time.Unix(record.CreatedUnixUTC, 0).UTC()
	row := SlotRecord{
		SlotID:                record.SlotID,
		UserID:                record.UserID,
		DistributorID:         record.DistributorID,
		KeywordID:             record.KeywordID,
		Status:                record.Status.String(),
		InputData:             datatypesJSON(record.InputDataJSON),
		AmountCents:           record.AmountCents,
		IsAutoRefundCandidate: record.IsAutoRefundCandidate,
		IsAutoContinue:        record.IsAutoContinue,
		CreatedAt:             createdAt,
		UpdatedAt:             createdAt,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectSlot, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectSlot, errorCodeInsert, err)
	}
	return nil
}

func insertSlotHistory(ctx context.Context, db *gorm.DB, entry slot.HistoryEntry) error {
	row := SlotHistoryLog{
		SlotID:    entry.SlotID,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Note:      entry.Note,
		Details:   datatypesJSON(entry.DetailsJSON),
		CreatedAt: time.Unix(entry.CreatedUnixUTC, 0).UTC(),
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectSlot, errorCodeInsert, err)
	}
	return nil
}

func insertPendingBalance(ctx context.Context, db *gorm.DB, pending slot.PendingBalance) error {
	createdAt := time.Unix(pending.CreatedUnixUTC, 0).UTC()
	row := SlotPendingBalance{
		SlotID:      pending.SlotID,
		AmountCents: pending.AmountCents,
		Status:      string(pending.Status),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectPending, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectPending, errorCodeInsert, err)
	}
	return nil
}

// updateSlotStatus is a compare-and-set: the update only lands when the slot
// still holds the expected from-status.
func updateSlotStatus(ctx context.Context, db *gorm.DB, slotID string, from, to slot.Status, conflictErr error) error {
	result := db.WithContext(ctx).
		Model(&SlotRecord{}).
		Where("slot_id = ? AND status = ?", slotID, from.String()).
		Updates(map[string]any{
			"status":     to.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectSlot, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: slot %s is not %s", conflictErr, slotID, from)
	}
	return nil
}
